// Command seed exercises the full happy path against a running API:
// office intake, dispatch assignment, technician start/complete, and
// invoice finalization. Useful after a schema reset to get a realistic
// record on every dashboard.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fleetservice/pkg/config"
)

func main() {
	var (
		baseURL = flag.String("base-url", "", "API base url (defaults to http://localhost<HTTP_ADDR>)")
	)
	flag.Parse()

	cfg := config.Load()
	if *baseURL == "" {
		addr := cfg.HTTPAddr
		if addr[0] == ':' {
			addr = "localhost" + addr
		}
		*baseURL = "http://" + addr
	}

	c := client{base: *baseURL + "/v1"}

	office := c.mintToken("office-1", "OFFICE")
	dispatcher := c.mintToken("dispatch-1", "DISPATCH")
	admin := c.mintToken("admin-1", "ADMIN")

	var tech struct {
		ID string `json:"id"`
	}
	c.do(office, "POST", "/technicians", map[string]any{"name": "Dana Reyes"}, &tech)
	techToken := c.mintToken(tech.ID, "TECH")

	c.do(office, "PUT", "/catalog/parts", map[string]any{
		"partNumber": "FLT-OIL-5W30",
		"name":       "5W-30 Synthetic Oil (qt)",
		"unitCost":   "4.50",
		"unitPrice":  "8.00",
	}, nil)

	c.do(admin, "PUT", "/settings", map[string]any{
		"shopName":      "Fleet Service Demo",
		"invoicePrefix": "INV",
		"taxRate":       "0.0825",
	}, nil)

	var req struct {
		ID string `json:"id"`
	}
	c.do(office, "POST", "/requests", map[string]any{
		"customerId":   "cust-100",
		"vehicleId":    "veh-204",
		"serviceTitle": "90k mile service",
		"description":  "Oil change, tire rotation, brake inspection",
		"mileage":      90412,
		"po":           "PO-2291",
	}, &req)
	fmt.Println("request:", req.ID)

	c.do(office, "PATCH", "/requests/"+req.ID+"/status", map[string]any{"status": "READY_TO_SCHEDULE"}, nil)

	c.do(dispatcher, "PUT", "/requests/"+req.ID+"/assignment", map[string]any{
		"technicianId": tech.ID,
		"scheduledAt":  time.Now().Add(time.Hour).Format(time.RFC3339),
	}, nil)

	c.do(office, "POST", "/requests/"+req.ID+"/parts", map[string]any{
		"partNumber": "FLT-OIL-5W30",
		"quantity":   6,
	}, nil)

	c.do(techToken, "POST", "/requests/"+req.ID+"/start", nil, nil)
	c.do(techToken, "POST", "/requests/"+req.ID+"/complete", nil, nil)

	var inv struct {
		InvoiceNumber string `json:"invoiceNumber"`
		GrandTotal    string `json:"grandTotal"`
	}
	c.do(office, "POST", "/requests/"+req.ID+"/invoice", map[string]any{"laborCost": "150.00"}, &inv)
	fmt.Printf("invoice %s, total %s\n", inv.InvoiceNumber, inv.GrandTotal)
}

type client struct {
	base string
}

func (c client) mintToken(actorID, role string) string {
	var out struct {
		Token string `json:"token"`
	}
	c.do("", "POST", "/auth/token", map[string]any{"actorId": actorID, "role": role}, &out)
	return out.Token
}

func (c client) do(token, method, path string, body any, out any) {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fatal(fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatal(err)
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
