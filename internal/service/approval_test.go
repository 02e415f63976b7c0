package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lab-sentinel/backend/internal/model"
)

type fakeResumer struct {
	mu      sync.Mutex
	resumed []string
}

func (f *fakeResumer) Resume(ctx context.Context, issue *model.Issue) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, issue.Fingerprint)
	return Decision{Outcome: DecisionAutoExecute}
}

func (f *fakeResumer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resumed)
}

func approvalIssue() *model.Issue {
	issue := testIssue(model.IssueTypeServiceDown)
	issue.RiskLevel = model.RiskHigh
	return issue
}

func TestApproveResumesExecution(t *testing.T) {
	resumer := &fakeResumer{}
	svc := NewApprovalService(resumer, nil, nil, time.Hour)

	issue := approvalIssue()
	id, err := svc.Request(issue)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(svc.Pending()) != 1 {
		t.Fatalf("pending = %d, want 1", len(svc.Pending()))
	}

	if err := svc.Resolve(id, true, "kim"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	waitFor(t, func() bool { return resumer.count() == 1 })
	if len(svc.Pending()) != 0 {
		t.Fatalf("approved request must leave the pending set")
	}
}

func TestApprovalIsSingleUse(t *testing.T) {
	resumer := &fakeResumer{}
	svc := NewApprovalService(resumer, nil, nil, time.Hour)

	id, _ := svc.Request(approvalIssue())
	if err := svc.Resolve(id, true, "kim"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	if err := svc.Resolve(id, true, "kim"); !errors.Is(err, ErrApprovalNotFound) {
		t.Fatalf("second resolve = %v, want ErrApprovalNotFound", err)
	}

	waitFor(t, func() bool { return resumer.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if resumer.count() != 1 {
		t.Fatalf("resume count = %d, approval must trigger exactly one execution", resumer.count())
	}
}

func TestRejectDoesNotResume(t *testing.T) {
	resumer := &fakeResumer{}
	svc := NewApprovalService(resumer, nil, nil, time.Hour)

	id, _ := svc.Request(approvalIssue())
	if err := svc.Resolve(id, false, "kim"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if resumer.count() != 0 {
		t.Fatalf("rejected approval must not resume execution")
	}
	if len(svc.Pending()) != 0 {
		t.Fatalf("rejected request must leave the pending set")
	}
}

func TestLazyExpiryOnResolve(t *testing.T) {
	resumer := &fakeResumer{}
	svc := NewApprovalService(resumer, nil, nil, 30*time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	id, _ := svc.Request(approvalIssue())

	current = current.Add(31 * time.Minute)
	if err := svc.Resolve(id, true, "kim"); !errors.Is(err, ErrApprovalExpired) {
		t.Fatalf("resolve after TTL = %v, want ErrApprovalExpired", err)
	}
	if resumer.count() != 0 {
		t.Fatalf("expired approval must not resume execution")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	svc := NewApprovalService(&fakeResumer{}, nil, nil, 10*time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	svc.Request(approvalIssue())

	other := testIssue(model.IssueTypeHighDisk)
	other.RiskLevel = model.RiskMedium
	svc.Request(other)

	current = current.Add(11 * time.Minute)
	if removed := svc.Sweep(); removed != 2 {
		t.Fatalf("sweep removed %d, want 2", removed)
	}
	if len(svc.Pending()) != 0 {
		t.Fatalf("pending must be empty after sweep")
	}
}

func TestRepeatRequestRefreshesExpiryOnly(t *testing.T) {
	svc := NewApprovalService(&fakeResumer{}, nil, nil, 30*time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	issue := approvalIssue()
	first, _ := svc.Request(issue)

	current = current.Add(20 * time.Minute)
	second, _ := svc.Request(issue)
	if first != second {
		t.Fatalf("repeat request must not mint a new approval id")
	}
	if len(svc.Pending()) != 1 {
		t.Fatalf("pending = %d, one approval per issue", len(svc.Pending()))
	}

	// 갱신된 만료 시각 기준으로 아직 유효
	current = current.Add(25 * time.Minute)
	if err := svc.Resolve(first, false, "kim"); err != nil {
		t.Fatalf("resolve after refresh = %v, want success", err)
	}
}

func TestApprovalPrefixLookup(t *testing.T) {
	svc := NewApprovalService(&fakeResumer{}, nil, nil, time.Hour)

	id, _ := svc.Request(approvalIssue())
	if err := svc.Resolve(model.ShortID(id), false, "kim"); err != nil {
		t.Fatalf("short id resolve failed: %v", err)
	}
}

func TestApprovalTTLClampedTo24Hours(t *testing.T) {
	svc := NewApprovalService(&fakeResumer{}, nil, nil, 100*time.Hour)

	current := time.Now()
	svc.now = func() time.Time { return current }

	id, _ := svc.Request(approvalIssue())

	current = current.Add(25 * time.Hour)
	if err := svc.Resolve(id, true, "kim"); !errors.Is(err, ErrApprovalExpired) {
		t.Fatalf("resolve after 25h = %v, TTL must be capped at 24h", err)
	}
}
