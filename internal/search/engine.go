package search

import (
	"context"
	"sync"

	"github.com/helpdeskhq/insight/internal/common"
)

// FallbackText is the apologetic answer produced when anything in the
// question pipeline fails.
const FallbackText = "Sorry, I encountered an error processing your request. Please try again."

// Engine answers natural-language questions about tickets. It lazily syncs
// the index, analyzes the question and retrieves candidates concurrently,
// and runs the result processor.
type Engine struct {
	analyzer  *Analyzer
	retriever *Retriever
	syncer    *Syncer
	processor *Processor
}

func NewEngine(analyzer *Analyzer, retriever *Retriever, syncer *Syncer, processor *Processor) *Engine {
	return &Engine{analyzer: analyzer, retriever: retriever, syncer: syncer, processor: processor}
}

// Answer never fails: errors are caught once here and converted into an
// apologetic text response with no data.
func (e *Engine) Answer(ctx context.Context, question, currentUserID string) Response {
	resp, err := e.answer(ctx, question, currentUserID)
	if err != nil {
		common.Logger().Error("search: answer failed", "error", err)
		return Response{Text: FallbackText}
	}
	return resp
}

func (e *Engine) answer(ctx context.Context, question, currentUserID string) (Response, error) {
	if _, err := e.syncer.SyncAll(ctx); err != nil {
		return Response{}, err
	}

	var (
		wg         sync.WaitGroup
		intent     Intent
		candidates []Candidate
		intentErr  error
		retrErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		intent, intentErr = e.analyzer.Analyze(ctx, question)
	}()
	go func() {
		defer wg.Done()
		candidates, retrErr = e.retriever.Retrieve(ctx, question)
	}()
	wg.Wait()
	if intentErr != nil {
		return Response{}, intentErr
	}
	if retrErr != nil {
		return Response{}, retrErr
	}

	return e.processor.Process(ctx, candidates, intent, currentUserID)
}
