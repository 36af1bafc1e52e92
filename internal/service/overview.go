package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"golang.org/x/sync/errgroup"
)

// Overview is what the dashboard home page shows in one request.
type Overview struct {
	Info     json.RawMessage `json:"info"`
	Balance  json.RawMessage `json:"balance"`
	Channels json.RawMessage `json:"channels"`
}

type Overviewer interface {
	Overview(ctx context.Context) (Overview, error)
}

type OverviewService struct {
	node phoenixd.Service
}

func NewOverviewService(node phoenixd.Service) *OverviewService {
	return &OverviewService{node: node}
}

// Overview fetches node info, balance and channels concurrently.
// [CONCURRENCY_OPTIMIZATION] errgroup makes all lookups complete or fail together.
func (s *OverviewService) Overview(ctx context.Context) (Overview, error) {
	var out Overview
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		out.Info, err = s.node.GetInfo(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Balance, err = s.node.GetBalance(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Channels, err = s.node.ListChannels(gCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("node overview: %w", err)
	}
	return out, nil
}
