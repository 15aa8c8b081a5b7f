package store

import (
	"context"
	"time"
)

// syncReportTTL keeps the last report around long enough for admins to
// review it between scheduled syncs.
const syncReportTTL = 30 * 24 * time.Hour

// SyncReports keeps the last metric sync summary per tenant.
type SyncReports struct {
	kv KV
}

func NewSyncReports(kv KV) *SyncReports { return &SyncReports{kv: kv} }

func (s *SyncReports) SetSyncReport(ctx context.Context, tenant string, report []byte) error {
	return s.kv.Set(ctx, "sync-report:"+tenant, string(report), syncReportTTL)
}

func (s *SyncReports) GetSyncReport(ctx context.Context, tenant string) ([]byte, error) {
	v, err := s.kv.Get(ctx, "sync-report:"+tenant)
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}
