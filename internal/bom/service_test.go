package bom

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type pairKey struct {
	projectID  int64
	materialID int64
}

type fakeRepo struct {
	lines   map[pairKey]Line
	booked  map[pairKey][2]float64
	nextID  int64
	deleted []pairKey
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{lines: map[pairKey]Line{}, booked: map[pairKey][2]float64{}}
}

func (f *fakeRepo) ListLines(_ context.Context, projectID int64) ([]Line, error) {
	var out []Line
	for key, line := range f.lines {
		if key.projectID == projectID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertLine(_ context.Context, line Line) (Line, error) {
	key := pairKey{line.ProjectID, line.MaterialID}
	if existing, ok := f.lines[key]; ok {
		line.ID = existing.ID
	} else {
		f.nextID++
		line.ID = f.nextID
	}
	f.lines[key] = line
	return line, nil
}

func (f *fakeRepo) DeleteLine(_ context.Context, projectID, materialID int64) error {
	key := pairKey{projectID, materialID}
	if _, ok := f.lines[key]; !ok {
		return fmt.Errorf("%w: missing", ErrNotFound)
	}
	delete(f.lines, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeRepo) BookedQuantities(_ context.Context, projectID, materialID int64) (float64, float64, error) {
	b := f.booked[pairKey{projectID, materialID}]
	return b[0], b[1], nil
}

func TestAssignQuantityUpserts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	line, err := svc.AssignQuantity(context.Background(), Line{ProjectID: 1, MaterialID: 10, Quantity: 100})
	require.NoError(t, err)
	require.NotZero(t, line.ID)

	raised, err := svc.AssignQuantity(context.Background(), Line{ProjectID: 1, MaterialID: 10, Quantity: 150})
	require.NoError(t, err)
	require.Equal(t, line.ID, raised.ID)
	require.Equal(t, 150.0, repo.lines[pairKey{1, 10}].Quantity)
}

func TestAssignQuantityRejectsCeilingBelowBooked(t *testing.T) {
	repo := newFakeRepo()
	repo.booked[pairKey{1, 10}] = [2]float64{80, 60}
	svc := NewService(repo, nil)

	_, err := svc.AssignQuantity(context.Background(), Line{ProjectID: 1, MaterialID: 10, Quantity: 70})
	require.ErrorIs(t, err, ErrQuantityInUse)

	_, err = svc.AssignQuantity(context.Background(), Line{ProjectID: 1, MaterialID: 10, Quantity: 80})
	require.NoError(t, err)
}

func TestAssignQuantityValidates(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.AssignQuantity(context.Background(), Line{ProjectID: 1, MaterialID: 10})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AssignQuantity(context.Background(), Line{MaterialID: 10, Quantity: 5})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRemoveLineBlocksBookedAllocations(t *testing.T) {
	repo := newFakeRepo()
	repo.lines[pairKey{1, 10}] = Line{ID: 1, ProjectID: 1, MaterialID: 10, Quantity: 100}
	repo.booked[pairKey{1, 10}] = [2]float64{0, 20}
	svc := NewService(repo, nil)

	err := svc.RemoveLine(context.Background(), 1, 10)
	require.ErrorIs(t, err, ErrQuantityInUse)

	repo.booked[pairKey{1, 10}] = [2]float64{}
	require.NoError(t, svc.RemoveLine(context.Background(), 1, 10))
	require.Empty(t, repo.lines)
}
