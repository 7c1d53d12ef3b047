package adapter

import (
	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/checkout"
	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/tokens"
)

// The production services satisfy the interfaces the handlers consume.
var (
	_ Tokens  = (*tokens.Cache)(nil)
	_ Catalog = (*catalog.Service)(nil)
	_ Orders  = (*checkout.Service)(nil)
	_ Records = (*crm.Client)(nil)
)
