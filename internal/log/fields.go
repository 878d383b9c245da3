package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldExpenseID  = "expense_id"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldStatus     = "status"
	FieldAction     = "action"
	FieldPage       = "page"
	FieldPageSize   = "page_size"
	FieldSort       = "sort"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentSession  = "session"
	ComponentGateway  = "gateway"
	ComponentStore    = "store"
	ComponentHandoff  = "handoff"
	ComponentApproval = "approval"
	ComponentExpense  = "expense"
	ComponentCache    = "cache"
	ComponentWatch    = "watch"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpHydrate  = "hydrate"
	OpAdopt    = "adopt"
	OpSubmit   = "submit"
	OpEdit     = "edit"
	OpDelete   = "delete"
	OpList     = "list"
	OpApprove  = "approve"
	OpReject   = "reject"
	OpFetch    = "fetch"
	OpDownload = "download"
)
