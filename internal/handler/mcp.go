// MCP transport for the gateway using the official MCP Go SDK.
// Exposes the catalog and checkout as MCP tools for agent clients. Tools run
// with the gateway's own CRM credentials.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/model"
)

// === MCP Tool Input Types ===
// Amounts are plain numbers here; the SDK derives input schemas from these
// types and decimal.Decimal has no useful schema.

// ListProductsInput is the input schema for the list_products tool.
type ListProductsInput struct {
	Query     string `json:"q,omitempty" jsonschema:"case-insensitive text matched against name and description"`
	Limit     int    `json:"limit,omitempty" jsonschema:"page size, default 20, at most 200"`
	Offset    int    `json:"offset,omitempty" jsonschema:"number of products to skip"`
	PriceBook string `json:"pricebook,omitempty" jsonschema:"price book name, default is the standard price book"`
}

// GetProductInput is the input schema for the get_product tool.
type GetProductInput struct {
	ID        string `json:"id" jsonschema:"product ID"`
	PriceBook string `json:"pricebook,omitempty" jsonschema:"price book name"`
}

// CheckoutInput is the input schema for the checkout tool.
type CheckoutInput struct {
	ContactID     string              `json:"contactId,omitempty" jsonschema:"contact placing the order"`
	AccountID     string              `json:"accountId,omitempty" jsonschema:"account placing the order, used when contactId is absent"`
	Items         []CheckoutItemInput `json:"items" jsonschema:"line items, at least one"`
	PaymentMethod string              `json:"paymentMethod,omitempty" jsonschema:"payment method label stored on the order"`
	Total         float64             `json:"total" jsonschema:"order total used for loyalty accrual"`
}

// CheckoutItemInput is one line item of the checkout tool.
type CheckoutItemInput struct {
	ProductID string  `json:"productId" jsonschema:"product ID"`
	Quantity  int     `json:"quantity" jsonschema:"quantity, at least 1"`
	UnitPrice float64 `json:"unitPrice" jsonschema:"unit price"`
}

// NewMCPServer creates an MCP server with catalog and checkout tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "commerce-gateway",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Commerce gateway - browse the product catalog and place orders in the CRM.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_products",
		Description: "List active products with prices. Returns an empty fallback list when the CRM is unreachable.",
	}, h.mcpListProducts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_product",
		Description: "Get one product with its price.",
	}, h.mcpGetProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout",
		Description: "Place an order for a contact or account. Returns the order ID, shipping details and loyalty points earned.",
	}, h.mcpCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpListProducts(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListProductsInput,
) (*mcp.CallToolResult, *model.ProductList, error) {
	list, err := h.catalog.ListProducts(ctx, h.serverReadToken(ctx), catalog.Query{
		Q:         input.Query,
		Limit:     input.Limit,
		Offset:    input.Offset,
		PriceBook: input.PriceBook,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, list, nil
}

func (h *Handler) mcpGetProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetProductInput,
) (*mcp.CallToolResult, *model.ProductDetail, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	detail, err := h.catalog.GetProduct(ctx, h.serverReadToken(ctx), input.ID, input.PriceBook)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, detail, nil
}

func (h *Handler) mcpCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CheckoutInput,
) (*mcp.CallToolResult, *model.CheckoutResult, error) {
	checkoutReq := &model.CheckoutRequest{
		ContactID:     input.ContactID,
		AccountID:     input.AccountID,
		PaymentMethod: input.PaymentMethod,
		Total:         decimal.NewFromFloat(input.Total),
		Items:         make([]model.CheckoutItem, len(input.Items)),
	}
	for i, item := range input.Items {
		checkoutReq.Items[i] = model.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.NewFromFloat(item.UnitPrice),
		}
	}
	if err := checkoutReq.Validate(); err != nil {
		return nil, nil, h.mcpError(err)
	}

	token, err := h.serverWriteToken(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	result, err := h.orders.Checkout(ctx, token, checkoutReq)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, result, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
