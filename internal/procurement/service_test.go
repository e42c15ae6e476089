package procurement

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type raiseCall struct {
	projectID  int64
	materialID int64
	quantity   float64
}

type fakeRepo struct {
	requests map[int64]Request
	raises   []raiseCall
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: map[int64]Request{}}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) ListRequests(_ context.Context, status RequestStatus) ([]Request, error) {
	var out []Request
	for _, req := range f.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetRequest(_ context.Context, id int64) (Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return req, nil
}

func (f *fakeRepo) CreateRequest(_ context.Context, req Request) (int64, error) {
	f.nextID++
	req.ID = f.nextID
	f.requests[req.ID] = req
	return req.ID, nil
}

func (f *fakeRepo) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	return f.GetRequest(ctx, id)
}

func (f *fakeRepo) MarkDecided(_ context.Context, req Request) error {
	if _, ok := f.requests[req.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, req.ID)
	}
	f.requests[req.ID] = req
	return nil
}

func (f *fakeRepo) RaiseAllocation(_ context.Context, projectID, materialID int64, quantity float64) error {
	f.raises = append(f.raises, raiseCall{projectID, materialID, quantity})
	return nil
}

func TestCreateStoresPendingRequest(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		ProjectID:  1,
		MaterialID: 10,
		Quantity:   25,
		Reason:     "design change",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.NotEmpty(t, req.Number)
	require.NotZero(t, req.ID)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{ProjectID: 1, MaterialID: 10})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{MaterialID: 10, Quantity: 5})
	require.ErrorIs(t, err, ErrValidation)
}

func TestApproveRaisesAllocation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{ProjectID: 1, MaterialID: 10, Quantity: 25})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, int64(7), approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)

	require.Len(t, repo.raises, 1)
	require.Equal(t, raiseCall{1, 10, 25}, repo.raises[0])
}

func TestRejectLeavesAllocationUntouched(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{ProjectID: 1, MaterialID: 10, Quantity: 25})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Empty(t, repo.raises)
}

func TestDecisionIsFinal(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{ProjectID: 1, MaterialID: 10, Quantity: 25})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), created.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), created.ID, 8)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	_, err = svc.Reject(context.Background(), created.ID, 8)
	require.ErrorIs(t, err, ErrAlreadyDecided)
}
