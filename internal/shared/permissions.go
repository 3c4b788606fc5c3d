package shared

// Permission tokens guarding the HTTP surface. The policy document must
// declare every token it assigns; these are the ones the router itself uses.
const (
	PermAuditRead         = "audit.read"
	PermAuditExport       = "audit.export"
	PermAuditVerify       = "audit.verify"
	PermMFAManage         = "mfa.manage"
	PermBreakGlassApprove = "break_glass.approve"
	PermPHIRead           = "phi.read"
	PermPHIWrite          = "phi.write"
)
