// storectl is a CLI tool for smoke-testing a running commerce gateway.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storectl products -gateway URL [-q TEXT] [-limit N] [-offset N] [-pricebook NAME]
//	storectl product -gateway URL -id <product-id>
//	storectl checkout -gateway URL -account ID -item PRODUCT:QTY:PRICE [-item ...]
//	storectl ship -gateway URL -order ID [-status S]
//	storectl token -gateway URL [-marketing]
//
// Examples:
//
//	PID=$(storectl products -q serum -limit 1 -quiet)
//	ORDER=$(storectl checkout -contact 003xx0000001 -item "$PID:2:19.99" -quiet)
//	storectl ship -order "$ORDER" -status Delivered
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"commerce-gateway/internal/model"
)

var client = &http.Client{Timeout: 2 * time.Minute}

// Global flags (apply to all commands)
var (
	gatewayURL string
	bearer     string
	quiet      bool
	noColor    bool
	verbose    bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "products":
		runProducts(args)
	case "product":
		runProduct(args)
	case "checkout":
		runCheckout(args)
	case "ship":
		runShip(args)
	case "token":
		runToken(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storectl - commerce gateway smoke-test tool

Usage:
  storectl <command> [options]

Commands:
  products  Search the catalog
  product   Show one product
  checkout  Place an order
  ship      Advance an order's demo shipping status
  token     Fetch a client-credentials token through the gateway

Examples:
  # Find a product and capture its ID
  PID=$(storectl products -q serum -limit 1 -quiet)

  # Order two of it for a known contact
  ORDER=$(storectl checkout -contact 003xx0000001 -item "$PID:2:19.99" -quiet)

  # Mark it delivered
  storectl ship -order "$ORDER" -status Delivered

Run 'storectl <command> -h' for command-specific options.
`)
}

// commonFlags registers the flags shared by every command.
func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&gatewayURL, "gateway", envOr("STORECTL_GATEWAY", "http://localhost:8080"), "Gateway base URL")
	fs.StringVar(&bearer, "token", os.Getenv("STORECTL_TOKEN"), "Bearer token to send (server credentials used if empty)")
	fs.BoolVar(&quiet, "quiet", false, "Quiet mode - only output the primary ID")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func parse(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// PRODUCTS COMMAND
// =============================================================================

func runProducts(args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	commonFlags(fs)
	var q, priceBook string
	var limit, offset int
	fs.StringVar(&q, "q", "", "Name or description filter")
	fs.IntVar(&limit, "limit", 20, "Page size (max 200)")
	fs.IntVar(&offset, "offset", 0, "Page offset")
	fs.StringVar(&priceBook, "pricebook", "", "Price book name (standard if empty)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storectl products [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parse(fs, args)

	params := url.Values{}
	if q != "" {
		params.Set("q", q)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if priceBook != "" {
		params.Set("pricebook", priceBook)
	}

	var list model.ProductList
	if err := doRequest("GET", "/products?"+params.Encode(), nil, &list); err != nil {
		fatal("Failed to list products: %v", err)
	}

	if quiet {
		for _, p := range list.Products {
			fmt.Println(p.ID)
		}
		return
	}

	if list.Source == model.SourceFallback {
		printWarning("Catalog degraded to fallback (no CRM token)")
	}
	printSuccess("%d of %d products", len(list.Products), list.Total)
	for _, p := range list.Products {
		fmt.Printf("  %s%s%s  %s  %s%.2f %s%s\n", colorCyan, p.ID, colorReset, p.Name, colorGreen, p.Price, p.Currency, colorReset)
	}
}

// =============================================================================
// PRODUCT COMMAND
// =============================================================================

func runProduct(args []string) {
	fs := flag.NewFlagSet("product", flag.ExitOnError)
	commonFlags(fs)
	var id, priceBook string
	fs.StringVar(&id, "id", "", "Product ID (required)")
	fs.StringVar(&priceBook, "pricebook", "", "Price book name (standard if empty)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storectl product -id <product-id> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parse(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	path := "/product/" + url.PathEscape(id)
	if priceBook != "" {
		path += "?pricebook=" + url.QueryEscape(priceBook)
	}

	var detail model.ProductDetail
	if err := doRequest("GET", path, nil, &detail); err != nil {
		fatal("Failed to get product: %v", err)
	}
	if detail.Product == nil {
		printWarning("No product returned (source %s)", detail.Source)
		return
	}

	p := detail.Product
	if quiet {
		fmt.Println(p.ID)
		return
	}
	printSuccess("Product retrieved")
	fmt.Printf("  Name: %s%s%s\n", colorBold, p.Name, colorReset)
	if p.SKU != "" {
		fmt.Printf("  SKU: %s\n", p.SKU)
	}
	fmt.Printf("  Price: %s%.2f %s%s\n", colorGreen, p.Price, p.Currency, colorReset)
}

// =============================================================================
// CHECKOUT COMMAND
// =============================================================================

func runCheckout(args []string) {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	commonFlags(fs)

	var req model.CheckoutRequest
	fs.StringVar(&req.AccountID, "account", "", "Account ID")
	fs.StringVar(&req.ContactID, "contact", "", "Contact ID (used when -account is empty)")
	fs.StringVar(&req.PaymentMethod, "payment", "Credit Card", "Payment method label")
	fs.Func("item", "Line item as PRODUCT:QTY:PRICE (repeatable)", func(s string) error {
		item, err := parseItem(s)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, item)
		return nil
	})
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storectl checkout -account ID -item PRODUCT:QTY:PRICE [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parse(fs, args)

	if len(req.Items) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	req.Total = total

	var result model.CheckoutResult
	if err := doRequest("POST", "/checkout", req, &result); err != nil {
		fatal("Checkout failed: %v", err)
	}

	if quiet {
		fmt.Println(result.OrderID)
		return
	}
	printSuccess("Order placed")
	fmt.Printf("  Order ID: %s%s%s\n", colorCyan, result.OrderID, colorReset)
	if result.OrderNumber != "" {
		fmt.Printf("  Order number: %s\n", result.OrderNumber)
	}
	fmt.Printf("  Total: %s%s%s\n", colorGreen, total.StringFixed(2), colorReset)
	fmt.Printf("  Shipping: %s via %s (%s), ETA %s\n",
		result.ShippingStatus, result.Carrier, result.TrackingNumber, result.EstimatedDelivery)
	if result.PointsEarned > 0 {
		fmt.Printf("  Loyalty: %s+%d points%s\n", colorBlue, result.PointsEarned, colorReset)
	}
}

// parseItem parses PRODUCT:QTY:PRICE.
func parseItem(s string) (model.CheckoutItem, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return model.CheckoutItem{}, fmt.Errorf("item %q: want PRODUCT:QTY:PRICE", s)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil || qty < 1 {
		return model.CheckoutItem{}, fmt.Errorf("item %q: quantity must be a positive integer", s)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return model.CheckoutItem{}, fmt.Errorf("item %q: invalid price: %w", s, err)
	}
	return model.CheckoutItem{ProductID: parts[0], Quantity: qty, UnitPrice: price}, nil
}

// =============================================================================
// SHIP COMMAND
// =============================================================================

func runShip(args []string) {
	fs := flag.NewFlagSet("ship", flag.ExitOnError)
	commonFlags(fs)
	var update model.ShipmentUpdate
	fs.StringVar(&update.OrderID, "order", "", "Order ID (required)")
	fs.StringVar(&update.Status, "status", "", "Shipping status (default Shipped)")
	fs.StringVar(&update.TrackingNumber, "tracking", "", "Tracking number")
	fs.StringVar(&update.Carrier, "carrier", "", "Carrier")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storectl ship -order ID [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parse(fs, args)

	if update.OrderID == "" {
		fs.Usage()
		os.Exit(1)
	}

	var result model.ShipmentUpdate
	if err := doRequest("POST", "/order/simulate-shipment", update, &result); err != nil {
		fatal("Failed to update shipment: %v", err)
	}
	if quiet {
		fmt.Println(result.Status)
		return
	}
	printSuccess("Order %s is %s", result.OrderID, result.Status)
}

// =============================================================================
// TOKEN COMMAND
// =============================================================================

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	commonFlags(fs)
	var marketing bool
	fs.BoolVar(&marketing, "marketing", false, "Use the marketing domain instead of core")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storectl token [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	parse(fs, args)

	path := "/token"
	if marketing {
		path = "/marketing/token"
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := doRequest("POST", path, nil, &tok); err != nil {
		fatal("Failed to get token: %v", err)
	}
	if quiet {
		fmt.Println(tok.AccessToken)
		return
	}
	printSuccess("Token issued")
	if tok.ExpiresIn > 0 {
		printInfo("expires in %s", time.Duration(tok.ExpiresIn)*time.Second)
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(gatewayURL, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		var apiErr model.APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
