// Command examples drives a running stellar-mcp HTTP server on testnet:
// create an account, fund it and rest a sell offer.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"OpenMCP-Stellar/sdk/go/stellarmcp"
)

func must(res stellarmcp.Result, err error) stellarmcp.Result {
	if err != nil {
		panic(err)
	}
	if err := res.Err(); err != nil {
		panic(err)
	}
	return res
}

func main() {
	baseURL := os.Getenv("STELLARMCP_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client, err := stellarmcp.NewClient(baseURL, stellarmcp.WithToken(os.Getenv("STELLARMCP_TOKEN")))
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tools, err := client.ListTools(ctx)
	if err != nil {
		panic(err)
	}
	for _, tool := range tools {
		fmt.Printf("tool %-18s %s\n", tool.Name, tool.Description)
	}

	var created struct {
		AccountID string `json:"account_id"`
	}
	if err := must(client.CallTool(ctx, "account_manager", map[string]any{"action": "create"})).Decode(&created); err != nil {
		panic(err)
	}
	fmt.Printf("created account %s\n", created.AccountID)

	must(client.CallTool(ctx, "account_manager", map[string]any{"action": "fund", "account_id": created.AccountID}))
	fmt.Println("funded from friendbot")

	issuer := os.Getenv("STELLARMCP_COUNTER_ISSUER")
	if issuer == "" {
		fmt.Println("set STELLARMCP_COUNTER_ISSUER to place an offer")
		return
	}
	counter := map[string]string{"type": "credit_alphanum4", "code": "USDC", "issuer": issuer}
	must(client.CallTool(ctx, "trustline_manager", map[string]any{
		"action": "establish", "account_id": created.AccountID, "asset": counter,
	}))

	res := must(client.CallToolIdempotent(ctx, "trading", map[string]any{
		"action":        "limit_sell",
		"account_id":    created.AccountID,
		"base_asset":    map[string]string{"type": "native"},
		"counter_asset": counter,
		"amount":        "10",
		"price":         "2",
	}, created.AccountID+"-first-offer"))
	fmt.Printf("offer submitted: %s\n", res.Data)
}
