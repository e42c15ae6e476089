package inventory

import "time"

type inwardLinePayload struct {
	ID          int64   `json:"id"`
	MaterialID  int64   `json:"materialId"`
	OrderedQty  float64 `json:"orderedQty"`
	ReceivedQty float64 `json:"receivedQty"`
}

type inwardPayload struct {
	ID           int64               `json:"id"`
	Code         string              `json:"code"`
	ProjectID    int64               `json:"projectId"`
	InwardType   string              `json:"inwardType"`
	SupplierName string              `json:"supplierName,omitempty"`
	InvoiceNo    string              `json:"invoiceNo,omitempty"`
	InvoiceDate  string              `json:"invoiceDate,omitempty"`
	DeliveryDate string              `json:"deliveryDate,omitempty"`
	VehicleNo    string              `json:"vehicleNo,omitempty"`
	Remarks      string              `json:"remarks,omitempty"`
	EntryDate    string              `json:"entryDate"`
	Lines        []inwardLinePayload `json:"lines"`
}

type outwardLinePayload struct {
	ID         int64   `json:"id"`
	MaterialID int64   `json:"materialId"`
	IssueQty   float64 `json:"issueQty"`
}

type outwardPayload struct {
	ID        int64                `json:"id"`
	Code      string               `json:"code"`
	ProjectID int64                `json:"projectId"`
	Date      string               `json:"date"`
	IssueTo   string               `json:"issueTo,omitempty"`
	Status    string               `json:"status"`
	CloseDate string               `json:"closeDate,omitempty"`
	Lines     []outwardLinePayload `json:"lines"`
}

type transferLinePayload struct {
	ID         int64   `json:"id"`
	MaterialID int64   `json:"materialId"`
	Qty        float64 `json:"qty"`
}

type transferPayload struct {
	ID            int64                 `json:"id"`
	Code          string                `json:"code"`
	FromProjectID int64                 `json:"fromProjectId"`
	ToProjectID   int64                 `json:"toProjectId"`
	FromSite      string                `json:"fromSite,omitempty"`
	ToSite        string                `json:"toSite,omitempty"`
	Remarks       string                `json:"remarks,omitempty"`
	TransferDate  string                `json:"transferDate"`
	Lines         []transferLinePayload `json:"lines"`
}

func inwardResponse(rec InwardRecord) inwardPayload {
	payload := inwardPayload{
		ID:           rec.ID,
		Code:         rec.Code,
		ProjectID:    rec.ProjectID,
		InwardType:   string(rec.Type),
		SupplierName: rec.SupplierName,
		InvoiceNo:    rec.InvoiceNo,
		InvoiceDate:  formatDate(rec.InvoiceDate),
		DeliveryDate: formatDate(rec.DeliveryDate),
		VehicleNo:    rec.VehicleNo,
		Remarks:      rec.Remarks,
		EntryDate:    rec.EntryDate.Format("2006-01-02"),
		Lines:        make([]inwardLinePayload, 0, len(rec.Lines)),
	}
	for _, line := range rec.Lines {
		payload.Lines = append(payload.Lines, inwardLinePayload{
			ID:          line.ID,
			MaterialID:  line.MaterialID,
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
		})
	}
	return payload
}

func outwardResponse(reg OutwardRegister) outwardPayload {
	payload := outwardPayload{
		ID:        reg.ID,
		Code:      reg.Code,
		ProjectID: reg.ProjectID,
		Date:      reg.Date.Format("2006-01-02"),
		IssueTo:   reg.IssueTo,
		Status:    string(reg.Status),
		CloseDate: formatDate(reg.CloseDate),
		Lines:     make([]outwardLinePayload, 0, len(reg.Lines)),
	}
	for _, line := range reg.Lines {
		payload.Lines = append(payload.Lines, outwardLinePayload{
			ID:         line.ID,
			MaterialID: line.MaterialID,
			IssueQty:   line.IssueQty,
		})
	}
	return payload
}

func transferResponse(rec TransferRecord) transferPayload {
	payload := transferPayload{
		ID:            rec.ID,
		Code:          rec.Code,
		FromProjectID: rec.FromProjectID,
		ToProjectID:   rec.ToProjectID,
		FromSite:      rec.FromSite,
		ToSite:        rec.ToSite,
		Remarks:       rec.Remarks,
		TransferDate:  rec.TransferDate.Format("2006-01-02"),
		Lines:         make([]transferLinePayload, 0, len(rec.Lines)),
	}
	for _, line := range rec.Lines {
		payload.Lines = append(payload.Lines, transferLinePayload{
			ID:         line.ID,
			MaterialID: line.MaterialID,
			Qty:        line.Qty,
		})
	}
	return payload
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
