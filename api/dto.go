/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the trading and reports types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal. They are written as JSON strings ("12.5")
  and accepted as either strings or numbers.

VALIDATION:
  Request types carry go-playground/validator tags. Decimal fields are
  validated as numbers (see validation.go). Rules that need the store
  (size belongs to batch, customer exists) are checked by the domain code.

SEE ALSO:
  - handlers.go: Uses these types
  - validation.go: Validator setup and error details
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/reports"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CustomerSummaryDTO is a row of the customer list.
type CustomerSummaryDTO struct {
	CustomerDTO
	TotalSpent     decimal.Decimal `json:"total_spent"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// CreateCustomerRequest is the request to create a customer. Mobile is
// normalized to E.164.
type CreateCustomerRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Email  string `json:"email" validate:"omitempty,email"`
	Mobile string `json:"mobile" validate:"omitempty,max=32"`
}

// BalanceDTO is a customer's outstanding debt.
type BalanceDTO struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// StatementDTO is a customer statement.
type StatementDTO struct {
	Customer       CustomerDTO        `json:"customer"`
	TotalSpent     decimal.Decimal    `json:"total_spent"`
	CurrentBalance decimal.Decimal    `json:"current_balance"`
	OrderCount     int                `json:"order_count"`
	Purchases      []StatementLineDTO `json:"purchases"`
	Sizes          []SizeSummaryDTO   `json:"sizes"`
}

type StatementLineDTO struct {
	PurchaseDTO
	BatchName string            `json:"batch_name"`
	Items     []PurchaseItemDTO `json:"items"`
}

type SizeSummaryDTO struct {
	SizeName      string          `json:"size_name"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
}

// =============================================================================
// BATCHES & SIZES
// =============================================================================

// BatchDTO represents a batch in API responses.
type BatchDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	Expenses   decimal.Decimal `json:"expenses"`
	IsBalanced bool            `json:"is_balanced"`
	CreatedAt  string          `json:"created_at"`
}

// CreateBatchRequest is the request to create a batch. New batches are
// never balanced.
type CreateBatchRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	CostPrice decimal.Decimal `json:"cost_price" validate:"gte=0"`
	TaxRate   decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	Expenses  decimal.Decimal `json:"expenses" validate:"gte=0"`
}

// UpdateBatchRequest is a partial update; nil fields are left alone.
type UpdateBatchRequest struct {
	Name      *string          `json:"name" validate:"omitempty,min=1,max=120"`
	CostPrice *decimal.Decimal `json:"cost_price" validate:"omitempty,gte=0"`
	TaxRate   *decimal.Decimal `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	Expenses  *decimal.Decimal `json:"expenses" validate:"omitempty,gte=0"`
}

func (r UpdateBatchRequest) fields() generic.Fields {
	f := generic.Fields{}
	if r.Name != nil {
		f["name"] = *r.Name
	}
	if r.CostPrice != nil {
		f["cost_price"] = *r.CostPrice
	}
	if r.TaxRate != nil {
		f["tax_rate"] = *r.TaxRate
	}
	if r.Expenses != nil {
		f["expenses"] = *r.Expenses
	}
	return f
}

// SetBalancedRequest sets the admin-controlled balanced flag.
type SetBalancedRequest struct {
	IsBalanced *bool `json:"is_balanced" validate:"required"`
}

// SizeDTO represents a size in API responses.
type SizeDTO struct {
	ID            string          `json:"id"`
	BatchID       string          `json:"batch_id"`
	SizeName      string          `json:"size_name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int64           `json:"stock_quantity"`
	CreatedAt     string          `json:"created_at"`
}

type CreateSizeRequest struct {
	SizeName      string          `json:"size_name" validate:"required,max=60"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	StockQuantity int64           `json:"stock_quantity" validate:"gte=0"`
}

// UpdateSizeRequest is a partial update. A price change only affects
// future purchases; existing items keep their snapshot.
type UpdateSizeRequest struct {
	SizeName      *string          `json:"size_name" validate:"omitempty,min=1,max=60"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	StockQuantity *int64           `json:"stock_quantity" validate:"omitempty,gte=0"`
}

func (r UpdateSizeRequest) fields() generic.Fields {
	f := generic.Fields{}
	if r.SizeName != nil {
		f["size_name"] = *r.SizeName
	}
	if r.Price != nil {
		f["price"] = *r.Price
	}
	if r.StockQuantity != nil {
		f[trading.FieldStock] = *r.StockQuantity
	}
	return f
}

// BatchDetailDTO is the batch page: batch, sizes, report and purchases.
type BatchDetailDTO struct {
	Batch     BatchDTO           `json:"batch"`
	Sizes     []SizeDTO          `json:"sizes"`
	Report    BatchReportDTO     `json:"report"`
	Purchases []BatchPurchaseDTO `json:"purchases"`
}

type BatchPurchaseDTO struct {
	PurchaseDTO
	CurrentCustomerName string `json:"current_customer_name"`
}

// =============================================================================
// PURCHASES & ALLOCATION
// =============================================================================

// PurchaseLineRequest is one requested size and quantity.
type PurchaseLineRequest struct {
	SizeID   string `json:"size_id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

// RecordPurchaseRequest records a sale out of the batch named in the URL.
type RecordPurchaseRequest struct {
	CustomerID   string                `json:"customer_id" validate:"required"`
	Items        []PurchaseLineRequest `json:"items" validate:"required,min=1,dive"`
	CashTendered decimal.Decimal       `json:"cash_tendered" validate:"gte=0"`
	ActorID      string                `json:"actor_id"`
}

func (r RecordPurchaseRequest) toDomain(batchID string) trading.PurchaseRequest {
	lines := make([]trading.PurchaseLine, len(r.Items))
	for i, it := range r.Items {
		lines[i] = trading.PurchaseLine{SizeID: it.SizeID, Quantity: it.Quantity}
	}
	return trading.PurchaseRequest{
		BatchID:      batchID,
		CustomerID:   r.CustomerID,
		Items:        lines,
		CashTendered: r.CashTendered,
		ActorID:      r.ActorID,
	}
}

// AllocationPreviewRequest plans a payment without writing anything. An
// empty customer id plans against no debt.
type AllocationPreviewRequest struct {
	CustomerID    string          `json:"customer_id"`
	CashTendered  decimal.Decimal `json:"cash_tendered" validate:"gte=0"`
	NewOrderTotal decimal.Decimal `json:"new_order_total" validate:"gte=0"`
}

// PurchaseDTO represents a purchase in API responses.
type PurchaseDTO struct {
	ID           string          `json:"id"`
	BatchID      string          `json:"batch_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CashPaid     decimal.Decimal `json:"cash_paid"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
	PaidDate     *string         `json:"paid_date"`
	CreatedAt    string          `json:"created_at"`
}

type PurchaseItemDTO struct {
	ID           string          `json:"id"`
	PurchaseID   string          `json:"purchase_id"`
	SizeID       string          `json:"size_id"`
	SizeName     string          `json:"size_name"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type PurchaseUpdateDTO struct {
	PurchaseID string          `json:"purchase_id"`
	Payment    decimal.Decimal `json:"payment"`
	CashPaid   decimal.Decimal `json:"cash_paid"`
	Balance    decimal.Decimal `json:"balance"`
	PaidDate   *string         `json:"paid_date"`
	Cleared    bool            `json:"cleared"`
}

type NewPurchaseDTO struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	CashPaid    decimal.Decimal `json:"cash_paid"`
	Balance     decimal.Decimal `json:"balance"`
	PaidDate    *string         `json:"paid_date"`
}

// AllocationDTO is a settlement plan.
type AllocationDTO struct {
	PreviousBalance decimal.Decimal     `json:"previous_balance"`
	AppliedToDebt   decimal.Decimal     `json:"applied_to_debt"`
	Updates         []PurchaseUpdateDTO `json:"updates"`
	ClearedCount    int                 `json:"cleared_count"`
	NewPurchase     NewPurchaseDTO      `json:"new_purchase"`
	Unapplied       decimal.Decimal     `json:"unapplied"`
}

type StockShortfallDTO struct {
	SizeID    string `json:"size_id"`
	SizeName  string `json:"size_name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// ReceiptDTO is the response to a recorded purchase.
type ReceiptDTO struct {
	Purchase     PurchaseDTO         `json:"purchase"`
	Items        []PurchaseItemDTO   `json:"items"`
	Allocation   AllocationDTO       `json:"allocation"`
	Notification *NotificationDTO    `json:"notification,omitempty"`
	Shortfalls   []StockShortfallDTO `json:"shortfalls,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type BatchReportDTO struct {
	BatchID    string          `json:"batch_id"`
	Name       string          `json:"name"`
	Revenue    decimal.Decimal `json:"revenue"`
	Cost       decimal.Decimal `json:"cost"`
	Expenses   decimal.Decimal `json:"expenses"`
	Tax        decimal.Decimal `json:"tax"`
	Profit     decimal.Decimal `json:"profit"`
	Tithe      decimal.Decimal `json:"tithe"`
	Margin     decimal.Decimal `json:"margin"`
	IsBalanced bool            `json:"is_balanced"`
}

type TotalsDTO struct {
	Revenue  decimal.Decimal `json:"revenue"`
	Profit   decimal.Decimal `json:"profit"`
	Tithe    decimal.Decimal `json:"tithe"`
	Expenses decimal.Decimal `json:"expenses"`
}

// ReportsResponse is the reports page.
type ReportsResponse struct {
	Batches []BatchReportDTO `json:"batches"`
	Totals  TotalsDTO        `json:"totals"`
}

type DashboardDTO struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	CustomerCount int             `json:"customer_count"`
	ActiveBatches int             `json:"active_batches"`
}

// =============================================================================
// NOTIFICATIONS, SCENARIOS, AUDIT
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// AuditRunDTO is one invariant audit pass.
type AuditRunDTO struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Checked     int64    `json:"checked"`
	Violations  int64    `json:"violations"`
	Problems    []string `json:"problems,omitempty"`
	Error       string   `json:"error,omitempty"`
	StartedAt   string   `json:"started_at"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Fields  []FieldErrorDTO `json:"fields,omitempty"`
}

// FieldErrorDTO names one rejected request field.
type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toCustomerDTO(c trading.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Mobile:    c.Mobile,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func toBatchDTO(b trading.Batch) BatchDTO {
	return BatchDTO{
		ID:         b.ID,
		Name:       b.Name,
		CostPrice:  b.CostPrice,
		TaxRate:    b.TaxRate,
		Expenses:   b.Expenses,
		IsBalanced: b.IsBalanced,
		CreatedAt:  formatTime(b.CreatedAt),
	}
}

func toSizeDTO(s trading.Size) SizeDTO {
	return SizeDTO{
		ID:            s.ID,
		BatchID:       s.BatchID,
		SizeName:      s.SizeName,
		Price:         s.Price,
		StockQuantity: s.StockQuantity,
		CreatedAt:     formatTime(s.CreatedAt),
	}
}

func toSizeDTOs(sizes []trading.Size) []SizeDTO {
	out := make([]SizeDTO, len(sizes))
	for i, s := range sizes {
		out[i] = toSizeDTO(s)
	}
	return out
}

func toPurchaseDTO(p trading.Purchase) PurchaseDTO {
	return PurchaseDTO{
		ID:           p.ID,
		BatchID:      p.BatchID,
		CustomerID:   p.CustomerID,
		CustomerName: p.CustomerName,
		TotalAmount:  p.TotalAmount,
		CashPaid:     p.CashPaid,
		Balance:      p.Balance,
		Status:       string(p.Status()),
		PaidDate:     formatTimePtr(p.PaidDate),
		CreatedAt:    formatTime(p.CreatedAt),
	}
}

func toItemDTOs(items []trading.PurchaseItem) []PurchaseItemDTO {
	out := make([]PurchaseItemDTO, len(items))
	for i, it := range items {
		out[i] = PurchaseItemDTO{
			ID:           it.ID,
			PurchaseID:   it.PurchaseID,
			SizeID:       it.SizeID,
			SizeName:     it.SizeName,
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit,
			LineTotal:    it.LineTotal(),
		}
	}
	return out
}

func toAllocationDTO(a trading.Allocation) AllocationDTO {
	updates := make([]PurchaseUpdateDTO, len(a.Updates))
	for i, u := range a.Updates {
		updates[i] = PurchaseUpdateDTO{
			PurchaseID: u.PurchaseID,
			Payment:    u.Payment,
			CashPaid:   u.CashPaid,
			Balance:    u.Balance,
			PaidDate:   formatTimePtr(u.PaidDate),
			Cleared:    u.Cleared,
		}
	}
	return AllocationDTO{
		PreviousBalance: a.PreviousBalance,
		AppliedToDebt:   a.AppliedToDebt(),
		Updates:         updates,
		ClearedCount:    a.ClearedCount,
		NewPurchase: NewPurchaseDTO{
			TotalAmount: a.NewPurchase.TotalAmount,
			CashPaid:    a.NewPurchase.CashPaid,
			Balance:     a.NewPurchase.Balance,
			PaidDate:    formatTimePtr(a.NewPurchase.PaidDate),
		},
		Unapplied: a.Unapplied,
	}
}

func toNotificationDTO(n trading.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

func toReceiptDTO(r trading.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		Purchase:   toPurchaseDTO(r.Purchase),
		Items:      toItemDTOs(r.Items),
		Allocation: toAllocationDTO(r.Allocation),
	}
	if r.Notification != nil {
		n := toNotificationDTO(*r.Notification)
		dto.Notification = &n
	}
	for _, sf := range r.Shortfalls {
		dto.Shortfalls = append(dto.Shortfalls, StockShortfallDTO{
			SizeID:    sf.SizeID,
			SizeName:  sf.SizeName,
			Requested: sf.Requested,
			Available: sf.Available,
		})
	}
	return dto
}

func toBatchReportDTO(r reports.BatchReport) BatchReportDTO {
	return BatchReportDTO{
		BatchID:    r.BatchID,
		Name:       r.Name,
		Revenue:    r.Revenue,
		Cost:       r.Cost,
		Expenses:   r.Expenses,
		Tax:        r.Tax,
		Profit:     r.Profit,
		Tithe:      r.Tithe,
		Margin:     r.Margin,
		IsBalanced: r.IsBalanced,
	}
}

func toStatementDTO(st reports.CustomerStatement) StatementDTO {
	dto := StatementDTO{
		Customer:       toCustomerDTO(st.Customer),
		TotalSpent:     st.TotalSpent,
		CurrentBalance: st.CurrentBalance,
		OrderCount:     st.OrderCount,
		Purchases:      make([]StatementLineDTO, len(st.Purchases)),
		Sizes:          make([]SizeSummaryDTO, len(st.Sizes)),
	}
	for i, line := range st.Purchases {
		dto.Purchases[i] = StatementLineDTO{
			PurchaseDTO: toPurchaseDTO(line.Purchase),
			BatchName:   line.BatchName,
			Items:       toItemDTOs(line.Items),
		}
	}
	for i, s := range st.Sizes {
		dto.Sizes[i] = SizeSummaryDTO{
			SizeName:      s.SizeName,
			TotalQuantity: s.TotalQuantity,
			TotalSpent:    s.TotalSpent,
		}
	}
	return dto
}

func toBatchDetailDTO(d reports.BatchDetail) BatchDetailDTO {
	dto := BatchDetailDTO{
		Batch:     toBatchDTO(d.Batch),
		Sizes:     toSizeDTOs(d.Sizes),
		Report:    toBatchReportDTO(d.Report),
		Purchases: make([]BatchPurchaseDTO, len(d.Purchases)),
	}
	for i, p := range d.Purchases {
		dto.Purchases[i] = BatchPurchaseDTO{
			PurchaseDTO:         toPurchaseDTO(p.Purchase),
			CurrentCustomerName: p.CustomerName,
		}
	}
	return dto
}
