package inventory

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type allocKey struct {
	projectID  int64
	materialID int64
}

// memStore is an in-memory TxRepository used by the service tests.
type memStore struct {
	projects      map[int64]Project
	materials     map[int64]Material
	allocations   map[allocKey]float64
	inwardRecords map[int64]InwardRecord
	inwardLines   map[int64]InwardLine
	registers     map[int64]OutwardRegister
	outwardLines  map[int64]OutwardLine
	transfers     map[int64]TransferRecord
	transferLines map[int64]TransferLine
	seq           int64
}

func newMemStore() *memStore {
	return &memStore{
		projects:      map[int64]Project{},
		materials:     map[int64]Material{},
		allocations:   map[allocKey]float64{},
		inwardRecords: map[int64]InwardRecord{},
		inwardLines:   map[int64]InwardLine{},
		registers:     map[int64]OutwardRegister{},
		outwardLines:  map[int64]OutwardLine{},
		transfers:     map[int64]TransferRecord{},
		transferLines: map[int64]TransferLine{},
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.seq = s.seq
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.materials {
		c.materials[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	for k, v := range s.inwardRecords {
		c.inwardRecords[k] = v
	}
	for k, v := range s.inwardLines {
		c.inwardLines[k] = v
	}
	for k, v := range s.registers {
		c.registers[k] = v
	}
	for k, v := range s.outwardLines {
		c.outwardLines[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.transferLines {
		c.transferLines[k] = v
	}
	return c
}

func (s *memStore) GetProject(_ context.Context, id int64) (Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: project %d", ErrNotFound, id)
	}
	return p, nil
}

func (s *memStore) GetMaterialForUpdate(_ context.Context, id int64) (Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	return m, nil
}

func (s *memStore) UpdateMaterialCounters(_ context.Context, m Material) error {
	s.materials[m.ID] = m
	return nil
}

func (s *memStore) GetAllocationForUpdate(_ context.Context, projectID, materialID int64) (float64, error) {
	qty, ok := s.allocations[allocKey{projectID, materialID}]
	if !ok {
		return 0, ErrNotAllocated
	}
	return qty, nil
}

func (s *memStore) SumInwardOrdered(_ context.Context, projectID, materialID int64) (float64, error) {
	var total float64
	for _, line := range s.inwardLines {
		if line.MaterialID != materialID {
			continue
		}
		if rec, ok := s.inwardRecords[line.RecordID]; ok && rec.ProjectID == projectID {
			total += line.OrderedQty
		}
	}
	return total, nil
}

func (s *memStore) SumInwardReceived(_ context.Context, projectID, materialID int64) (float64, error) {
	var total float64
	for _, line := range s.inwardLines {
		if line.MaterialID != materialID {
			continue
		}
		if rec, ok := s.inwardRecords[line.RecordID]; ok && rec.ProjectID == projectID {
			total += line.ReceivedQty
		}
	}
	return total, nil
}

func (s *memStore) SumOutwardIssued(_ context.Context, projectID, materialID int64) (float64, error) {
	return s.SumOutwardIssuedExcluding(nil, projectID, materialID, 0)
}

func (s *memStore) SumOutwardIssuedExcluding(_ context.Context, projectID, materialID, registerID int64) (float64, error) {
	var total float64
	for _, line := range s.outwardLines {
		if line.MaterialID != materialID || line.RegisterID == registerID {
			continue
		}
		if reg, ok := s.registers[line.RegisterID]; ok && reg.ProjectID == projectID {
			total += line.IssueQty
		}
	}
	return total, nil
}

func (s *memStore) CountInwardOn(_ context.Context, date time.Time) (int64, error) {
	var n int64
	for _, rec := range s.inwardRecords {
		if rec.EntryDate.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountOutwardOn(_ context.Context, date time.Time) (int64, error) {
	var n int64
	for _, reg := range s.registers {
		if reg.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountTransferOn(_ context.Context, date time.Time) (int64, error) {
	var n int64
	for _, rec := range s.transfers {
		if rec.TransferDate.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertInwardRecord(_ context.Context, rec InwardRecord) (int64, error) {
	rec.ID = s.nextID()
	rec.Lines = nil
	s.inwardRecords[rec.ID] = rec
	return rec.ID, nil
}

func (s *memStore) InsertInwardLine(_ context.Context, line InwardLine) (int64, error) {
	line.ID = s.nextID()
	s.inwardLines[line.ID] = line
	return line.ID, nil
}

func (s *memStore) FindRegisterForUpdate(_ context.Context, projectID int64, date time.Time) (OutwardRegister, error) {
	for _, reg := range s.registers {
		if reg.ProjectID == projectID && reg.Date.Equal(date) {
			reg.Lines = nil
			return reg, nil
		}
	}
	return OutwardRegister{}, fmt.Errorf("%w: outward register", ErrNotFound)
}

func (s *memStore) GetRegisterForUpdate(_ context.Context, id int64) (OutwardRegister, error) {
	reg, ok := s.registers[id]
	if !ok {
		return OutwardRegister{}, fmt.Errorf("%w: outward register", ErrNotFound)
	}
	reg.Lines = nil
	return reg, nil
}

func (s *memStore) ListRegisterLines(_ context.Context, registerID int64) ([]OutwardLine, error) {
	var lines []OutwardLine
	for _, line := range s.outwardLines {
		if line.RegisterID == registerID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (s *memStore) InsertRegister(_ context.Context, reg OutwardRegister) (int64, error) {
	reg.ID = s.nextID()
	reg.Lines = nil
	s.registers[reg.ID] = reg
	return reg.ID, nil
}

func (s *memStore) UpdateRegisterMeta(_ context.Context, reg OutwardRegister) error {
	stored, ok := s.registers[reg.ID]
	if !ok {
		return fmt.Errorf("%w: outward register", ErrNotFound)
	}
	stored.IssueTo = reg.IssueTo
	stored.Status = reg.Status
	stored.CloseDate = reg.CloseDate
	s.registers[reg.ID] = stored
	return nil
}

func (s *memStore) InsertOutwardLine(_ context.Context, line OutwardLine) (int64, error) {
	line.ID = s.nextID()
	s.outwardLines[line.ID] = line
	return line.ID, nil
}

func (s *memStore) UpdateOutwardLineQty(_ context.Context, lineID int64, qty float64) error {
	line, ok := s.outwardLines[lineID]
	if !ok {
		return fmt.Errorf("%w: outward line %d", ErrNotFound, lineID)
	}
	line.IssueQty = qty
	s.outwardLines[lineID] = line
	return nil
}

func (s *memStore) DeleteRegisterLines(_ context.Context, registerID int64) error {
	for id, line := range s.outwardLines {
		if line.RegisterID == registerID {
			delete(s.outwardLines, id)
		}
	}
	return nil
}

func (s *memStore) InsertTransferRecord(_ context.Context, rec TransferRecord) (int64, error) {
	rec.ID = s.nextID()
	rec.Lines = nil
	s.transfers[rec.ID] = rec
	return rec.ID, nil
}

func (s *memStore) InsertTransferLine(_ context.Context, line TransferLine) (int64, error) {
	line.ID = s.nextID()
	s.transferLines[line.ID] = line
	return line.ID, nil
}

// fakeRepo wraps memStore with snapshot-restore semantics so a failed
// operation leaves no trace, mirroring a rolled back transaction.
type fakeRepo struct {
	store *memStore
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := f.store.clone()
	if err := fn(ctx, f.store); err != nil {
		*f.store = *snapshot
		return err
	}
	return nil
}

func (s *memStore) addProject(id int64, code, name string) {
	s.projects[id] = Project{ID: id, Code: code, Name: name}
}

func (s *memStore) addMaterial(id int64, code, unit string) {
	s.materials[id] = Material{ID: id, Code: code, Name: code, Unit: unit}
}

func (s *memStore) setMaterialCounters(id int64, ordered, received, utilized float64) {
	m := s.materials[id]
	m.OrderedQty = ordered
	m.ReceivedQty = received
	m.UtilizedQty = utilized
	m.SyncBalance()
	s.materials[id] = m
}

func (s *memStore) allocate(projectID, materialID int64, qty float64) {
	s.allocations[allocKey{projectID, materialID}] = qty
}

func (s *memStore) seedInward(projectID, materialID int64, ordered, received float64, entryDate time.Time) {
	recID := s.nextID()
	s.inwardRecords[recID] = InwardRecord{
		ID:        recID,
		Code:      fmt.Sprintf("SEED-%03d", recID),
		ProjectID: projectID,
		Type:      InwardTypeSupply,
		EntryDate: entryDate,
	}
	lineID := s.nextID()
	s.inwardLines[lineID] = InwardLine{
		ID:          lineID,
		RecordID:    recID,
		MaterialID:  materialID,
		OrderedQty:  ordered,
		ReceivedQty: received,
	}
}

func newTestService(store *memStore) *Service {
	return NewService(&fakeRepo{store: store}, nil)
}

func today() time.Time {
	return dateOnly(time.Now())
}

func TestRegisterInwardAccumulatesCounters(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	svc := newTestService(store)

	rec, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines:     []InwardLineInput{{MaterialID: 10, OrderedQty: 80, ReceivedQty: 60}},
	})
	require.NoError(t, err)
	require.Equal(t, InwardTypeSupply, rec.Type)
	require.Equal(t, fmt.Sprintf("INW-%s-001", today().Format("20060102")), rec.Code)
	require.Len(t, rec.Lines, 1)

	m := store.materials[10]
	require.Equal(t, 80.0, m.OrderedQty)
	require.Equal(t, 60.0, m.ReceivedQty)
	require.Equal(t, 60.0, m.BalanceQty)
}

func TestRegisterInwardEnforcesOrderedCeiling(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 80, 0, today())
	svc := newTestService(store)

	_, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines:     []InwardLineInput{{MaterialID: 10, OrderedQty: 30}},
	})
	require.ErrorIs(t, err, ErrAllocationExceeded)
}

func TestRegisterInwardEnforcesReceivedCeilingIndependently(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 0, 90, today())
	svc := newTestService(store)

	// ordered fits the ceiling but received does not
	_, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines:     []InwardLineInput{{MaterialID: 10, OrderedQty: 10, ReceivedQty: 20}},
	})
	require.ErrorIs(t, err, ErrAllocationExceeded)
}

func TestRegisterInwardCountsPendingLinesWithinBatch(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	svc := newTestService(store)

	_, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines: []InwardLineInput{
			{MaterialID: 10, ReceivedQty: 60},
			{MaterialID: 10, ReceivedQty: 60},
		},
	})
	require.ErrorIs(t, err, ErrAllocationExceeded)
}

func TestRegisterInwardClampsAndSkipsLines(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.addMaterial(11, "STL", "kg")
	store.allocate(1, 10, 100)
	store.allocate(1, 11, 100)
	svc := newTestService(store)

	rec, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines: []InwardLineInput{
			{MaterialID: 10, OrderedQty: -5, ReceivedQty: 40},
			{MaterialID: 11, OrderedQty: -1, ReceivedQty: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.Lines, 1)
	require.Equal(t, 0.0, rec.Lines[0].OrderedQty)
	require.Equal(t, 40.0, rec.Lines[0].ReceivedQty)

	_, err = svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines:     []InwardLineInput{{MaterialID: 10, OrderedQty: 0, ReceivedQty: -2}},
	})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestRegisterInwardIsAllOrNothing(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.addMaterial(11, "STL", "kg")
	store.allocate(1, 10, 100)
	svc := newTestService(store)

	_, err := svc.RegisterInward(context.Background(), InwardInput{
		ProjectID: 1,
		Lines: []InwardLineInput{
			{MaterialID: 10, ReceivedQty: 40},
			{MaterialID: 11, ReceivedQty: 10},
		},
	})
	require.ErrorIs(t, err, ErrNotAllocated)
	require.Empty(t, store.inwardRecords)
	require.Equal(t, 0.0, store.materials[10].ReceivedQty)
}

func TestRegisterOutwardIssuesAgainstProjectBalance(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		IssueTo:   "Block C",
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 40}},
	})
	require.NoError(t, err)
	require.Equal(t, OutwardStatusOpen, reg.Status)
	require.Len(t, reg.Lines, 1)
	require.Equal(t, 40.0, reg.Lines[0].IssueQty)

	m := store.materials[10]
	require.Equal(t, 40.0, m.UtilizedQty)
	require.Equal(t, 20.0, m.BalanceQty)

	// only 20 left in the project
	_, err = svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 30}},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRegisterOutwardRejectsAfterExactDrain(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 50)
	store.seedInward(1, 10, 50, 50, today())
	store.setMaterialCounters(10, 50, 50, 0)
	svc := newTestService(store)

	_, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 50}},
	})
	require.NoError(t, err)

	_, err = svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 1}},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Contains(t, err.Error(), "no balance available")
}

func TestRegisterOutwardMergesLinesIntoDailyRegister(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 100, 100, today())
	store.setMaterialCounters(10, 100, 100, 0)
	svc := newTestService(store)

	first, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 10}},
	})
	require.NoError(t, err)

	second, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 15}},
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Lines, 1)
	require.Equal(t, 25.0, second.Lines[0].IssueQty)
	require.Len(t, store.registers, 1)
}

func TestRegisterOutwardCapsAtGlobalStock(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 50, 50, today())
	// other consumers drained the global pool below this project's balance
	store.setMaterialCounters(10, 90, 90, 80)
	svc := newTestService(store)

	_, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 20}},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Contains(t, err.Error(), "available quantity is 10")
}

func TestRegisterOutwardEnforcesAllocationCeiling(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 120, 120, today())
	store.setMaterialCounters(10, 120, 120, 0)
	svc := newTestService(store)

	_, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 110}},
	})
	require.ErrorIs(t, err, ErrAllocationExceeded)
}

func TestRegisterOutwardRejectsClosedRegister(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 100, 100, today())
	store.setMaterialCounters(10, 100, 100, 0)
	svc := newTestService(store)

	_, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 10}},
	})
	require.NoError(t, err)

	_, err = svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Status:    string(OutwardStatusClosed),
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 5}},
	})
	require.NoError(t, err)

	var reg OutwardRegister
	for _, r := range store.registers {
		reg = r
	}
	require.Equal(t, OutwardStatusClosed, reg.Status)
	require.NotNil(t, reg.CloseDate)
	require.True(t, reg.CloseDate.Equal(today()))

	_, err = svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 5}},
	})
	require.ErrorIs(t, err, ErrClosedRegister)
}

func TestUpdateOutwardReplacesLinesAndAdjustsCounters(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 40}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		Lines: []OutwardUpdateLineInput{{LineID: reg.Lines[0].ID, MaterialID: 10, IssueQty: 25}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	require.Equal(t, 25.0, updated.Lines[0].IssueQty)

	m := store.materials[10]
	require.Equal(t, 25.0, m.UtilizedQty)
	require.Equal(t, 35.0, m.BalanceQty)
}

func TestUpdateOutwardAcceptsEmptyReplacement(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 40}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		IssueTo: "Stores",
	})
	require.NoError(t, err)
	require.Empty(t, updated.Lines)
	require.Equal(t, "Stores", updated.IssueTo)

	m := store.materials[10]
	require.Equal(t, 0.0, m.UtilizedQty)
	require.Equal(t, 60.0, m.BalanceQty)
}

func TestUpdateOutwardRejectsTotalOverReceived(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 40}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		Lines: []OutwardUpdateLineInput{{LineID: reg.Lines[0].ID, MaterialID: 10, IssueQty: 70}},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUpdateOutwardRejectsIncreaseOverGlobalStock(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 40}},
	})
	require.NoError(t, err)

	// another project drains the global pool out from under this register
	store.setMaterialCounters(10, 60, 60, 55)

	_, err = svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		Lines: []OutwardUpdateLineInput{{LineID: reg.Lines[0].ID, MaterialID: 10, IssueQty: 50}},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUpdateOutwardRejectsClosedRegister(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	reg, err := svc.RegisterOutward(context.Background(), OutwardInput{
		ProjectID: 1,
		Lines:     []OutwardLineInput{{MaterialID: 10, IssueQty: 10}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		Status: string(OutwardStatusClosed),
	})
	require.NoError(t, err)

	_, err = svc.UpdateOutward(context.Background(), reg.ID, OutwardUpdateInput{
		Lines: []OutwardUpdateLineInput{{MaterialID: 10, IssueQty: 5}},
	})
	require.ErrorIs(t, err, ErrClosedRegister)
}

func TestRegisterTransferBooksBothLegs(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addProject(2, "PRJ-B", "Beta")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	store.allocate(2, 10, 100)
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	rec, err := svc.RegisterTransfer(context.Background(), TransferInput{
		FromProjectID: 1,
		ToProjectID:   2,
		Lines:         []TransferLineInput{{MaterialID: 10, Qty: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("TRF-%s-001", today().Format("20060102")), rec.Code)
	require.Len(t, rec.Lines, 1)

	issuedFrom, err := store.SumOutwardIssued(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 20.0, issuedFrom)

	receivedTo, err := store.SumInwardReceived(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Equal(t, 20.0, receivedTo)

	var inwardLeg InwardRecord
	for _, r := range store.inwardRecords {
		if r.ProjectID == 2 {
			inwardLeg = r
		}
	}
	require.Equal(t, InwardTypeReturn, inwardLeg.Type)
	require.Equal(t, "Alpha", inwardLeg.SupplierName)
	require.Equal(t, "Transfer from PRJ-A", inwardLeg.Remarks)

	var outwardLeg OutwardRegister
	for _, r := range store.registers {
		if r.ProjectID == 1 {
			outwardLeg = r
		}
	}
	require.Equal(t, "Transfer to PRJ-B", outwardLeg.IssueTo)

	// issue and receipt cancel out at the global level
	m := store.materials[10]
	require.Equal(t, 80.0, m.ReceivedQty)
	require.Equal(t, 20.0, m.UtilizedQty)
	require.Equal(t, 60.0, m.BalanceQty)
}

func TestRegisterTransferValidatesSameProjectSites(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	svc := newTestService(store)

	_, err := svc.RegisterTransfer(context.Background(), TransferInput{
		FromProjectID: 1,
		ToProjectID:   1,
		Lines:         []TransferLineInput{{MaterialID: 10, Qty: 5}},
	})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.RegisterTransfer(context.Background(), TransferInput{
		FromProjectID: 1,
		ToProjectID:   1,
		FromSite:      "Yard",
		ToSite:        "YARD",
		Lines:         []TransferLineInput{{MaterialID: 10, Qty: 5}},
	})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestRegisterTransferRollsBackWhenLegFails(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addProject(2, "PRJ-B", "Beta")
	store.addMaterial(10, "CEM", "bag")
	store.allocate(1, 10, 100)
	// destination has no allocation, the inward leg must fail
	store.seedInward(1, 10, 60, 60, today())
	store.setMaterialCounters(10, 60, 60, 0)
	svc := newTestService(store)

	_, err := svc.RegisterTransfer(context.Background(), TransferInput{
		FromProjectID: 1,
		ToProjectID:   2,
		Lines:         []TransferLineInput{{MaterialID: 10, Qty: 20}},
	})
	require.ErrorIs(t, err, ErrNotAllocated)
	require.Empty(t, store.transfers)
	require.Empty(t, store.registers)

	m := store.materials[10]
	require.Equal(t, 0.0, m.UtilizedQty)
	require.Equal(t, 60.0, m.BalanceQty)
}

func TestGenerateCodesPreviewsWithoutReserving(t *testing.T) {
	store := newMemStore()
	store.addProject(1, "PRJ-A", "Alpha")
	store.addMaterial(10, "CEM", "bag")
	store.seedInward(1, 10, 10, 10, today())
	svc := newTestService(store)

	day := today().Format("20060102")
	codes, err := svc.GenerateCodes(context.Background())
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("INW-%s-002", day), codes.InwardCode)
	require.Equal(t, fmt.Sprintf("OUT-%s-001", day), codes.OutwardCode)
	require.Equal(t, fmt.Sprintf("TRF-%s-001", day), codes.TransferCode)

	again, err := svc.GenerateCodes(context.Background())
	require.NoError(t, err)
	require.Equal(t, codes, again)
}
