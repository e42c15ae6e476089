package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vebops/store/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger movements. Every public operation runs as one
// transaction: the reads that establish current totals, the validations and
// the writes commit or abort together.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	codes singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// InwardLineInput describes one requested receipt line.
type InwardLineInput struct {
	MaterialID  int64
	OrderedQty  float64
	ReceivedQty float64
}

// InwardInput describes a receipt submission.
type InwardInput struct {
	Code         string
	ProjectID    int64
	Type         string
	SupplierName string
	InvoiceNo    string
	InvoiceDate  *time.Time
	DeliveryDate *time.Time
	VehicleNo    string
	Remarks      string
	RefID        string
	ActorID      int64
	Lines        []InwardLineInput
}

// OutwardLineInput describes one requested issue line.
type OutwardLineInput struct {
	MaterialID int64
	IssueQty   float64
}

// OutwardInput describes an issue submission against a (project, date) register.
type OutwardInput struct {
	Code      string
	ProjectID int64
	Date      *time.Time
	IssueTo   string
	Status    string
	CloseDate *time.Time
	RefID     string
	ActorID   int64
	Lines     []OutwardLineInput
}

// OutwardUpdateLineInput is one line of a full-replacement edit. LineID, when
// non-zero, matches an existing row of the register.
type OutwardUpdateLineInput struct {
	LineID     int64
	MaterialID int64
	IssueQty   float64
}

// OutwardUpdateInput replaces a register's line set.
type OutwardUpdateInput struct {
	Lines     []OutwardUpdateLineInput
	Status    string
	IssueTo   string
	CloseDate *time.Time
	ActorID   int64
}

// TransferLineInput moves one material between the two locations.
type TransferLineInput struct {
	MaterialID int64
	Qty        float64
}

// TransferInput describes a compound inter-project (or inter-site) movement.
type TransferInput struct {
	Code          string
	FromProjectID int64
	ToProjectID   int64
	FromSite      string
	ToSite        string
	Remarks       string
	RefID         string
	ActorID       int64
	Lines         []TransferLineInput
}

// GenerateCodes previews the next daily document codes. The read does not
// reserve a sequence number; concurrent callers may observe the same count,
// and the unique code index resolves the collision at commit time.
func (s *Service) GenerateCodes(ctx context.Context) (Codes, error) {
	v, err, _ := s.codes.Do("preview", func() (any, error) {
		var codes Codes
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			today := dateOnly(time.Now())
			inward, err := tx.CountInwardOn(ctx, today)
			if err != nil {
				return err
			}
			outward, err := tx.CountOutwardOn(ctx, today)
			if err != nil {
				return err
			}
			transfer, err := tx.CountTransferOn(ctx, today)
			if err != nil {
				return err
			}
			codes = Codes{
				InwardCode:   dailyCode("INW", today, inward+1),
				OutwardCode:  dailyCode("OUT", today, outward+1),
				TransferCode: dailyCode("TRF", today, transfer+1),
			}
			return nil
		})
		return codes, err
	})
	if err != nil {
		return Codes{}, err
	}
	return v.(Codes), nil
}

// RegisterInward validates and applies a receipt. The batch is all-or-nothing:
// if any line fails validation, nothing from the call persists.
func (s *Service) RegisterInward(ctx context.Context, input InwardInput) (InwardRecord, error) {
	if err := validateRef(input.RefID); err != nil {
		return InwardRecord{}, err
	}
	if input.ProjectID == 0 {
		return InwardRecord{}, fmt.Errorf("%w: project is required", ErrBadRequest)
	}
	var rec InwardRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = s.registerInwardTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return InwardRecord{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:inward", "inward_record", rec.Code, map[string]any{
		"project_id": rec.ProjectID,
		"lines":      len(rec.Lines),
	})
	return rec, nil
}

func (s *Service) registerInwardTx(ctx context.Context, tx TxRepository, input InwardInput) (InwardRecord, error) {
	if len(input.Lines) == 0 {
		return InwardRecord{}, fmt.Errorf("%w: at least one inward line is required", ErrBadRequest)
	}
	project, err := tx.GetProject(ctx, input.ProjectID)
	if err != nil {
		return InwardRecord{}, err
	}
	inwardType, err := parseInwardType(input.Type)
	if err != nil {
		return InwardRecord{}, err
	}

	entryDate := dateOnly(time.Now())
	if input.DeliveryDate != nil {
		entryDate = dateOnly(*input.DeliveryDate)
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		n, err := tx.CountInwardOn(ctx, dateOnly(time.Now()))
		if err != nil {
			return InwardRecord{}, err
		}
		code = dailyCode("INW", dateOnly(time.Now()), n+1)
	}

	rec := InwardRecord{
		Code:         code,
		ProjectID:    project.ID,
		Type:         inwardType,
		SupplierName: input.SupplierName,
		InvoiceNo:    input.InvoiceNo,
		InvoiceDate:  input.InvoiceDate,
		DeliveryDate: input.DeliveryDate,
		VehicleNo:    input.VehicleNo,
		Remarks:      input.Remarks,
		EntryDate:    entryDate,
	}

	materials := newMaterialSet(tx)
	pendingOrdered := map[int64]float64{}
	pendingReceived := map[int64]float64{}
	var lines []InwardLine

	for _, lineReq := range input.Lines {
		ordered := math.Max(0, lineReq.OrderedQty)
		received := math.Max(0, lineReq.ReceivedQty)
		if ordered <= 0 && received <= 0 {
			continue
		}
		material, err := materials.get(ctx, lineReq.MaterialID)
		if err != nil {
			return InwardRecord{}, err
		}
		allocation, err := s.requireAllocation(ctx, tx, project, material)
		if err != nil {
			return InwardRecord{}, err
		}

		alreadyOrdered, err := tx.SumInwardOrdered(ctx, project.ID, material.ID)
		if err != nil {
			return InwardRecord{}, err
		}
		if alreadyOrdered+pendingOrdered[material.ID]+ordered > allocation {
			return InwardRecord{}, fmt.Errorf(
				"%w: ordering %s exceeds the allocated requirement (%g) for project %s",
				ErrAllocationExceeded, material.Code, allocation, project.Code)
		}

		alreadyReceived, err := tx.SumInwardReceived(ctx, project.ID, material.ID)
		if err != nil {
			return InwardRecord{}, err
		}
		if alreadyReceived+pendingReceived[material.ID]+received > allocation {
			return InwardRecord{}, fmt.Errorf(
				"%w: receiving %s exceeds the allocated requirement (%g) for project %s",
				ErrAllocationExceeded, material.Code, allocation, project.Code)
		}

		lines = append(lines, InwardLine{
			MaterialID:  material.ID,
			OrderedQty:  ordered,
			ReceivedQty: received,
		})
		material.OrderedQty += ordered
		material.ReceivedQty += received
		material.SyncBalance()
		pendingOrdered[material.ID] += ordered
		pendingReceived[material.ID] += received
	}

	if len(lines) == 0 {
		return InwardRecord{}, fmt.Errorf("%w: at least one inward line with quantity is required", ErrBadRequest)
	}

	recID, err := tx.InsertInwardRecord(ctx, rec)
	if err != nil {
		return InwardRecord{}, err
	}
	rec.ID = recID
	for i := range lines {
		lines[i].RecordID = recID
		lineID, err := tx.InsertInwardLine(ctx, lines[i])
		if err != nil {
			return InwardRecord{}, err
		}
		lines[i].ID = lineID
	}
	rec.Lines = lines

	if err := materials.flush(ctx); err != nil {
		return InwardRecord{}, err
	}
	return rec, nil
}

// RegisterOutward validates and applies issue lines against the (project,
// date) register, creating or reusing it. Lines for the same material
// accumulate into one register row.
func (s *Service) RegisterOutward(ctx context.Context, input OutwardInput) (OutwardRegister, error) {
	if err := validateRef(input.RefID); err != nil {
		return OutwardRegister{}, err
	}
	if input.ProjectID == 0 {
		return OutwardRegister{}, fmt.Errorf("%w: project is required", ErrBadRequest)
	}
	var reg OutwardRegister
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reg, err = s.registerOutwardTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return OutwardRegister{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:outward", "outward_register", reg.Code, map[string]any{
		"project_id": reg.ProjectID,
		"lines":      len(reg.Lines),
	})
	return reg, nil
}

func (s *Service) registerOutwardTx(ctx context.Context, tx TxRepository, input OutwardInput) (OutwardRegister, error) {
	if len(input.Lines) == 0 {
		return OutwardRegister{}, fmt.Errorf("%w: at least one outward line is required", ErrBadRequest)
	}
	project, err := tx.GetProject(ctx, input.ProjectID)
	if err != nil {
		return OutwardRegister{}, err
	}

	registerDate := dateOnly(time.Now())
	if input.Date != nil {
		registerDate = dateOnly(*input.Date)
	}

	reg, err := tx.FindRegisterForUpdate(ctx, project.ID, registerDate)
	switch {
	case err == nil:
	case isNotFound(err):
		reg, err = s.createRegister(ctx, tx, project, registerDate, input)
		if err != nil {
			return OutwardRegister{}, err
		}
	default:
		return OutwardRegister{}, err
	}
	if reg.Status == OutwardStatusClosed {
		return OutwardRegister{}, fmt.Errorf("%w: outward register already closed for %s",
			ErrClosedRegister, registerDate.Format("2006-01-02"))
	}

	existingLines, err := tx.ListRegisterLines(ctx, reg.ID)
	if err != nil {
		return OutwardRegister{}, err
	}
	byMaterial := make(map[int64]*OutwardLine, len(existingLines))
	for i := range existingLines {
		byMaterial[existingLines[i].MaterialID] = &existingLines[i]
	}

	materials := newMaterialSet(tx)
	pending := map[int64]float64{}
	issuedCache := map[int64]float64{}
	receivedCache := map[int64]float64{}
	var newLines []*OutwardLine
	touched := map[int64]bool{}

	for _, lineReq := range input.Lines {
		issueQty := math.Max(0, lineReq.IssueQty)
		if issueQty <= 0 {
			continue
		}
		material, err := materials.get(ctx, lineReq.MaterialID)
		if err != nil {
			return OutwardRegister{}, err
		}

		received, ok := receivedCache[material.ID]
		if !ok {
			received, err = tx.SumInwardReceived(ctx, project.ID, material.ID)
			if err != nil {
				return OutwardRegister{}, err
			}
			receivedCache[material.ID] = received
		}
		issued, ok := issuedCache[material.ID]
		if !ok {
			issued, err = tx.SumOutwardIssued(ctx, project.ID, material.ID)
			if err != nil {
				return OutwardRegister{}, err
			}
			issuedCache[material.ID] = issued
		}

		projectBalance := received - issued - pending[material.ID]
		if projectBalance <= 0 {
			return OutwardRegister{}, fmt.Errorf("%w: no balance available for material %s in project %s",
				ErrInsufficientBalance, material.Code, project.Code)
		}
		effectiveAvailable := math.Min(projectBalance, material.BalanceQty)
		if issueQty > effectiveAvailable {
			return OutwardRegister{}, fmt.Errorf(
				"%w: cannot issue %g %s of %s for project %s, available quantity is %g",
				ErrInsufficientBalance, issueQty, material.Unit, material.Code, project.Code, effectiveAvailable)
		}

		allocation, err := s.requireAllocation(ctx, tx, project, material)
		if err != nil {
			return OutwardRegister{}, err
		}
		if issued+pending[material.ID]+issueQty > allocation {
			return OutwardRegister{}, fmt.Errorf(
				"%w: issuing %s exceeds the allocated requirement (%g) for project %s",
				ErrAllocationExceeded, material.Code, allocation, project.Code)
		}

		if line, ok := byMaterial[material.ID]; ok {
			line.IssueQty += issueQty
			touched[line.ID] = true
		} else {
			line := &OutwardLine{RegisterID: reg.ID, MaterialID: material.ID, IssueQty: issueQty}
			newLines = append(newLines, line)
			// index the pending insert so a later line for the same material accumulates
			byMaterial[material.ID] = line
		}

		material.UtilizedQty += issueQty
		material.SyncBalance()
		pending[material.ID] += issueQty
	}

	for i := range existingLines {
		if touched[existingLines[i].ID] {
			if err := tx.UpdateOutwardLineQty(ctx, existingLines[i].ID, existingLines[i].IssueQty); err != nil {
				return OutwardRegister{}, err
			}
		}
	}
	for _, line := range newLines {
		line.RegisterID = reg.ID
		lineID, err := tx.InsertOutwardLine(ctx, *line)
		if err != nil {
			return OutwardRegister{}, err
		}
		line.ID = lineID
	}

	if input.IssueTo != "" {
		reg.IssueTo = input.IssueTo
	}
	if input.Status != "" {
		status, err := parseStatus(input.Status)
		if err != nil {
			return OutwardRegister{}, err
		}
		reg.Status = status
		if status == OutwardStatusClosed {
			today := dateOnly(time.Now())
			reg.CloseDate = &today
		} else {
			reg.CloseDate = input.CloseDate
		}
	}
	if err := tx.UpdateRegisterMeta(ctx, reg); err != nil {
		return OutwardRegister{}, err
	}
	if err := materials.flush(ctx); err != nil {
		return OutwardRegister{}, err
	}

	reg.Lines = existingLines
	for _, line := range newLines {
		reg.Lines = append(reg.Lines, *line)
	}
	return reg, nil
}

func (s *Service) createRegister(ctx context.Context, tx TxRepository, project Project, date time.Time, input OutwardInput) (OutwardRegister, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		n, err := tx.CountOutwardOn(ctx, dateOnly(time.Now()))
		if err != nil {
			return OutwardRegister{}, err
		}
		code = dailyCode("OUT", dateOnly(time.Now()), n+1)
	}
	reg := OutwardRegister{
		Code:      code,
		ProjectID: project.ID,
		Date:      date,
		IssueTo:   input.IssueTo,
		Status:    OutwardStatusOpen,
	}
	if input.Status != "" {
		status, err := parseStatus(input.Status)
		if err != nil {
			return OutwardRegister{}, err
		}
		reg.Status = status
		if status == OutwardStatusClosed {
			today := dateOnly(time.Now())
			reg.CloseDate = &today
		} else {
			reg.CloseDate = input.CloseDate
		}
	}
	id, err := tx.InsertRegister(ctx, reg)
	if err != nil {
		return OutwardRegister{}, err
	}
	reg.ID = id
	return reg, nil
}

// UpdateOutward replaces a register's line set, re-validating the requested
// totals against the rest of the ledger net of this register's own prior
// contribution.
func (s *Service) UpdateOutward(ctx context.Context, registerID int64, input OutwardUpdateInput) (OutwardRegister, error) {
	var reg OutwardRegister
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reg, err = s.updateOutwardTx(ctx, tx, registerID, input)
		return err
	})
	if err != nil {
		return OutwardRegister{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:outward-update", "outward_register", reg.Code, map[string]any{
		"register_id": reg.ID,
		"lines":       len(reg.Lines),
	})
	return reg, nil
}

func (s *Service) updateOutwardTx(ctx context.Context, tx TxRepository, registerID int64, input OutwardUpdateInput) (OutwardRegister, error) {
	reg, err := tx.GetRegisterForUpdate(ctx, registerID)
	if err != nil {
		return OutwardRegister{}, err
	}
	if reg.Status == OutwardStatusClosed {
		return OutwardRegister{}, fmt.Errorf("%w: closed registers cannot be edited", ErrClosedRegister)
	}
	project, err := tx.GetProject(ctx, reg.ProjectID)
	if err != nil {
		return OutwardRegister{}, err
	}

	currentLines, err := tx.ListRegisterLines(ctx, reg.ID)
	if err != nil {
		return OutwardRegister{}, err
	}
	existingByID := make(map[int64]OutwardLine, len(currentLines))
	currentTotals := map[int64]float64{}
	for _, line := range currentLines {
		existingByID[line.ID] = line
		currentTotals[line.MaterialID] += line.IssueQty
	}

	materials := newMaterialSet(tx)
	requestedTotals := map[int64]float64{}
	var nextLines []OutwardLine

	for _, lineReq := range input.Lines {
		if lineReq.IssueQty <= 0 {
			continue
		}
		material, err := materials.get(ctx, lineReq.MaterialID)
		if err != nil {
			return OutwardRegister{}, err
		}
		requestedTotals[material.ID] += lineReq.IssueQty

		line := OutwardLine{RegisterID: reg.ID, MaterialID: material.ID, IssueQty: lineReq.IssueQty}
		if prev, ok := existingByID[lineReq.LineID]; lineReq.LineID != 0 && ok {
			line.ID = prev.ID
		}
		nextLines = append(nextLines, line)
	}

	for _, materialID := range sortedKeys(requestedTotals) {
		material, err := materials.get(ctx, materialID)
		if err != nil {
			return OutwardRegister{}, err
		}
		allocation, err := s.requireAllocation(ctx, tx, project, material)
		if err != nil {
			return OutwardRegister{}, err
		}
		issuedElsewhere, err := tx.SumOutwardIssuedExcluding(ctx, project.ID, materialID, reg.ID)
		if err != nil {
			return OutwardRegister{}, err
		}
		received, err := tx.SumInwardReceived(ctx, project.ID, materialID)
		if err != nil {
			return OutwardRegister{}, err
		}
		nextTotal := issuedElsewhere + requestedTotals[materialID]
		if nextTotal > received {
			projectBalance := math.Max(0, received-issuedElsewhere)
			return OutwardRegister{}, fmt.Errorf(
				"%w: cannot set issue quantity for material %s to %g in project %s, project balance is only %g",
				ErrInsufficientBalance, material.Code, requestedTotals[materialID], project.Code, projectBalance)
		}
		if nextTotal > allocation {
			return OutwardRegister{}, fmt.Errorf(
				"%w: issuing %s exceeds the allocated requirement (%g) for project %s",
				ErrAllocationExceeded, material.Code, allocation, project.Code)
		}
	}

	affected := map[int64]bool{}
	for id := range currentTotals {
		affected[id] = true
	}
	for id := range requestedTotals {
		affected[id] = true
	}
	for _, materialID := range sortedBoolKeys(affected) {
		material, err := materials.get(ctx, materialID)
		if err != nil {
			return OutwardRegister{}, err
		}
		diff := requestedTotals[materialID] - currentTotals[materialID]
		if diff == 0 {
			continue
		}
		if diff > 0 && diff > material.BalanceQty {
			return OutwardRegister{}, fmt.Errorf(
				"%w: cannot increase issue quantity for %s by %g, only %g available in stock",
				ErrInsufficientBalance, material.Code, diff, material.BalanceQty)
		}
		material.UtilizedQty = math.Max(0, material.UtilizedQty+diff)
		material.SyncBalance()
	}

	if err := tx.DeleteRegisterLines(ctx, reg.ID); err != nil {
		return OutwardRegister{}, err
	}
	for i := range nextLines {
		nextLines[i].ID = 0
		lineID, err := tx.InsertOutwardLine(ctx, nextLines[i])
		if err != nil {
			return OutwardRegister{}, err
		}
		nextLines[i].ID = lineID
	}

	if input.Status != "" {
		status, err := parseStatus(input.Status)
		if err != nil {
			return OutwardRegister{}, err
		}
		reg.Status = status
		if status == OutwardStatusClosed {
			today := dateOnly(time.Now())
			reg.CloseDate = &today
		} else {
			reg.CloseDate = input.CloseDate
		}
	}
	if input.IssueTo != "" {
		reg.IssueTo = input.IssueTo
	}
	if err := tx.UpdateRegisterMeta(ctx, reg); err != nil {
		return OutwardRegister{}, err
	}
	if err := materials.flush(ctx); err != nil {
		return OutwardRegister{}, err
	}

	reg.Lines = nextLines
	return reg, nil
}

// RegisterTransfer books a compound movement: one outward leg from the source
// project and one RETURN inward leg into the destination, plus the transfer
// record itself, all inside a single transaction. A failing leg rolls back
// the whole transfer.
func (s *Service) RegisterTransfer(ctx context.Context, input TransferInput) (TransferRecord, error) {
	if err := validateRef(input.RefID); err != nil {
		return TransferRecord{}, err
	}
	if input.FromProjectID == 0 {
		return TransferRecord{}, fmt.Errorf("%w: source project is required", ErrBadRequest)
	}
	if input.ToProjectID == 0 {
		return TransferRecord{}, fmt.Errorf("%w: destination project is required", ErrBadRequest)
	}
	if len(input.Lines) == 0 {
		return TransferRecord{}, fmt.Errorf("%w: at least one transfer line is required", ErrBadRequest)
	}

	fromSite := strings.TrimSpace(input.FromSite)
	toSite := strings.TrimSpace(input.ToSite)
	if input.FromProjectID == input.ToProjectID {
		if fromSite == "" || toSite == "" {
			return TransferRecord{}, fmt.Errorf(
				"%w: provide both source and destination sites when transferring within a project", ErrBadRequest)
		}
		if strings.EqualFold(fromSite, toSite) {
			return TransferRecord{}, fmt.Errorf("%w: cannot transfer within the same project site", ErrBadRequest)
		}
	}

	var transferLines []TransferLine
	var outwardLines []OutwardLineInput
	var inwardLines []InwardLineInput
	for _, lineReq := range input.Lines {
		if lineReq.Qty <= 0 {
			continue
		}
		transferLines = append(transferLines, TransferLine{MaterialID: lineReq.MaterialID, Qty: lineReq.Qty})
		outwardLines = append(outwardLines, OutwardLineInput{MaterialID: lineReq.MaterialID, IssueQty: lineReq.Qty})
		inwardLines = append(inwardLines, InwardLineInput{MaterialID: lineReq.MaterialID, ReceivedQty: lineReq.Qty})
	}
	if len(transferLines) == 0 {
		return TransferRecord{}, fmt.Errorf("%w: transfer quantity must be greater than zero", ErrBadRequest)
	}

	var rec TransferRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fromProject, err := tx.GetProject(ctx, input.FromProjectID)
		if err != nil {
			return err
		}
		toProject, err := tx.GetProject(ctx, input.ToProjectID)
		if err != nil {
			return err
		}

		code := strings.TrimSpace(input.Code)
		if code == "" {
			n, err := tx.CountTransferOn(ctx, dateOnly(time.Now()))
			if err != nil {
				return err
			}
			code = dailyCode("TRF", dateOnly(time.Now()), n+1)
		}
		rec = TransferRecord{
			Code:          code,
			FromProjectID: fromProject.ID,
			ToProjectID:   toProject.ID,
			FromSite:      fromSite,
			ToSite:        toSite,
			Remarks:       input.Remarks,
			TransferDate:  dateOnly(time.Now()),
		}
		recID, err := tx.InsertTransferRecord(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = recID
		for i := range transferLines {
			transferLines[i].RecordID = recID
			lineID, err := tx.InsertTransferLine(ctx, transferLines[i])
			if err != nil {
				return err
			}
			transferLines[i].ID = lineID
		}
		rec.Lines = transferLines

		if _, err := s.registerOutwardTx(ctx, tx, OutwardInput{
			ProjectID: fromProject.ID,
			IssueTo:   fmt.Sprintf("Transfer to %s", toProject.Code),
			Lines:     outwardLines,
		}); err != nil {
			return err
		}
		if _, err := s.registerInwardTx(ctx, tx, InwardInput{
			ProjectID:    toProject.ID,
			Type:         string(InwardTypeReturn),
			SupplierName: fromProject.Name,
			Remarks:      fmt.Sprintf("Transfer from %s", fromProject.Code),
			Lines:        inwardLines,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return TransferRecord{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:transfer", "transfer_record", rec.Code, map[string]any{
		"from_project_id": rec.FromProjectID,
		"to_project_id":   rec.ToProjectID,
		"lines":           len(rec.Lines),
	})
	return rec, nil
}

func (s *Service) requireAllocation(ctx context.Context, tx TxRepository, project Project, material *Material) (float64, error) {
	allocation, err := tx.GetAllocationForUpdate(ctx, project.ID, material.ID)
	if err != nil {
		if isNotAllocated(err) {
			return 0, fmt.Errorf("%w: material %s is not allocated to project %s",
				ErrNotAllocated, material.Code, project.Code)
		}
		return 0, err
	}
	return allocation, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}

// materialSet loads each material at most once per operation, locks its row
// and flushes the accumulated counter changes at the end.
type materialSet struct {
	tx    TxRepository
	items map[int64]*Material
}

func newMaterialSet(tx TxRepository) *materialSet {
	return &materialSet{tx: tx, items: map[int64]*Material{}}
}

func (ms *materialSet) get(ctx context.Context, id int64) (*Material, error) {
	if m, ok := ms.items[id]; ok {
		return m, nil
	}
	m, err := ms.tx.GetMaterialForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	ms.items[id] = &m
	return &m, nil
}

func (ms *materialSet) flush(ctx context.Context) error {
	for _, id := range sortedMaterialKeys(ms.items) {
		if err := ms.tx.UpdateMaterialCounters(ctx, *ms.items[id]); err != nil {
			return err
		}
	}
	return nil
}

func dailyCode(prefix string, date time.Time, sequence int64) string {
	if sequence < 1 {
		sequence = 1
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, date.Format("20060102"), sequence)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func parseStatus(raw string) (OutwardStatus, error) {
	switch OutwardStatus(raw) {
	case OutwardStatusOpen, OutwardStatusClosed:
		return OutwardStatus(raw), nil
	}
	return "", fmt.Errorf("%w: invalid status %q", ErrBadRequest, raw)
}

func parseInwardType(raw string) (InwardType, error) {
	if raw == "" {
		return InwardTypeSupply, nil
	}
	switch InwardType(raw) {
	case InwardTypeSupply, InwardTypeReturn:
		return InwardType(raw), nil
	}
	return "", fmt.Errorf("%w: invalid inward type %q", ErrBadRequest, raw)
}

func validateRef(ref string) error {
	if ref == "" {
		return nil
	}
	if _, err := uuid.Parse(ref); err != nil {
		return fmt.Errorf("%w: invalid ref id: %v", ErrBadRequest, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func isNotAllocated(err error) bool {
	return errors.Is(err, ErrNotAllocated)
}

func sortedKeys(m map[int64]float64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedBoolKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedMaterialKeys(m map[int64]*Material) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
