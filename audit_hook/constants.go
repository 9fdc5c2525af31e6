package audithook

// Action constants for audit events.
const (
	// Directory actions
	ActionClientCreated       = "client.created"
	ActionClientDeleted       = "client.deleted"
	ActionSupplierCreated     = "supplier.created"
	ActionSupplierDeleted     = "supplier.deleted"
	ActionStockProductCreated = "stock.created"
	ActionStockProductDeleted = "stock.deleted"

	// Ledger actions
	ActionNumberIssued    = "number.issued"
	ActionStockReconciled = "stock.reconciled"
	ActionBalanceChanged  = "balance.changed"

	// Invoice actions
	ActionClientInvoiceClosed    = "client_invoice.closed"
	ActionClientInvoiceDeleted   = "client_invoice.deleted"
	ActionSupplierInvoiceClosed  = "supplier_invoice.closed"
	ActionSupplierInvoiceDeleted = "supplier_invoice.deleted"

	// Failures
	ActionOperationFailed = "operation.failed"
)

// Resource constants for audit events.
const (
	ResourceClient          = "client"
	ResourceSupplier        = "supplier"
	ResourceStockProduct    = "stock"
	ResourceSequence        = "sequence"
	ResourceClientInvoice   = "client_invoice"
	ResourceSupplierInvoice = "supplier_invoice"
	ResourceOperation       = "operation"
)

// Category constants for audit events.
const (
	CategoryDirectory = "directory"
	CategorySales     = "sales"
	CategoryPurchases = "purchases"
	CategoryInventory = "inventory"
	CategoryLedger    = "ledger"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
