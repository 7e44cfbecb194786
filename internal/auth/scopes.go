package auth

// Known OAuth scopes used by the inventory API.
const (
	ScopeAssetsRead   = "assets:read"
	ScopeAssetsWrite  = "assets:write"
	ScopeAssetsImport = "assets:import"
)
