package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cardanoagents/enhanced-client/internal/escrow/model"
	"github.com/cardanoagents/enhanced-client/internal/hashing"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentcorectl",
	Short: "Command-line interface for the agent economy coordinator",
	Long: `agentcorectl drives the registry, escrow, revenue, and cross-chain
directory operations exposed by an agentcore server's HTTP API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.agentcorectl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agentcorectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "agentcore server base URL (default http://localhost:8080)")

	rootCmd.AddCommand(registerAgentCmd)
	rootCmd.AddCommand(getAgentCmd)
	rootCmd.AddCommand(findAgentsCmd)
	rootCmd.AddCommand(createEscrowCmd)
	rootCmd.AddCommand(releaseEscrowCmd)
	rootCmd.AddCommand(disputeEscrowCmd)
	rootCmd.AddCommand(arbitrateEscrowCmd)
	rootCmd.AddCommand(distributeCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(registerCrossChainCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(versionCmd)
}

// ── thin REST client ─────────────────────────────────────────────────────────

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// ── register-agent ───────────────────────────────────────────────────────────

var (
	regAgentID      string
	regOwner        string
	regMetadataURI  string
	regCapabilities []string
	regStake        string
	regFramework    string
)

var registerAgentCmd = &cobra.Command{
	Use:   "register-agent",
	Short: "Register a new agent in the staked registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/agents", map[string]any{
			"agent_id":          regAgentID,
			"owner_address":     regOwner,
			"metadata_uri":      regMetadataURI,
			"capabilities":      regCapabilities,
			"stake":             regStake,
			"framework_version": regFramework,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	registerAgentCmd.Flags().StringVar(&regAgentID, "agent-id", "", "Unique agent identifier")
	registerAgentCmd.Flags().StringVar(&regOwner, "owner", "", "Owner wallet address")
	registerAgentCmd.Flags().StringVar(&regMetadataURI, "metadata-uri", "", "Off-chain metadata URI")
	registerAgentCmd.Flags().StringSliceVar(&regCapabilities, "capability", nil, "Declared capability (repeatable)")
	registerAgentCmd.Flags().StringVar(&regStake, "stake", "", "Staked amount, e.g. 500.000000")
	registerAgentCmd.Flags().StringVar(&regFramework, "framework-version", "", "Agent framework version")

	_ = registerAgentCmd.MarkFlagRequired("agent-id")
	_ = registerAgentCmd.MarkFlagRequired("owner")
	_ = registerAgentCmd.MarkFlagRequired("capability")
	_ = registerAgentCmd.MarkFlagRequired("stake")
}

// ── get-agent / find-agents ──────────────────────────────────────────────────

var getAgentCmd = &cobra.Command{
	Use:   "get-agent <agent-id>",
	Short: "Fetch a single agent's registry record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		if err := c.do(context.Background(), http.MethodGet, "/api/v1/agents/"+args[0], nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var (
	findCapability string
	findMinRep     string
)

var findAgentsCmd = &cobra.Command{
	Use:   "find-agents",
	Short: "Search the registry by capability and minimum reputation",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := "/api/v1/agents?"
		if findCapability != "" {
			query += "capability=" + findCapability + "&"
		}
		if findMinRep != "" {
			query += "min_reputation=" + findMinRep
		}
		c := newAPIClient(serverURL)
		var out map[string]any
		if err := c.do(context.Background(), http.MethodGet, query, nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	findAgentsCmd.Flags().StringVar(&findCapability, "capability", "", "Filter by declared capability")
	findAgentsCmd.Flags().StringVar(&findMinRep, "min-reputation", "", "Filter by minimum reputation score")
}

// ── create-escrow ─────────────────────────────────────────────────────────────

var (
	escRequester   string
	escAgentID     string
	escServiceHash string
	escPayment     string
	escDeadline    string
	escTask        string
	escPricing     string
)

var createEscrowCmd = &cobra.Command{
	Use:   "create-escrow",
	Short: "Create a new escrow against an agent's service",
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline, err := time.Parse(time.RFC3339, escDeadline)
		if err != nil {
			return fmt.Errorf("invalid --deadline (want RFC3339): %w", err)
		}

		c := newAPIClient(serverURL)
		var out map[string]any
		err = c.do(context.Background(), http.MethodPost, "/api/v1/escrows", map[string]any{
			"requester_address": escRequester,
			"agent_id":          escAgentID,
			"service_hash":      escServiceHash,
			"payment":           escPayment,
			"deadline":          deadline.Format(time.RFC3339),
			"task_description":  escTask,
			"pricing":           escPricing,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	createEscrowCmd.Flags().StringVar(&escRequester, "requester", "", "Requester wallet address")
	createEscrowCmd.Flags().StringVar(&escAgentID, "agent-id", "", "Agent providing the service")
	createEscrowCmd.Flags().StringVar(&escServiceHash, "service-hash", "", "Deterministic hash of the requested task")
	createEscrowCmd.Flags().StringVar(&escPayment, "payment", "", "Payment amount, e.g. 25.000000")
	createEscrowCmd.Flags().StringVar(&escDeadline, "deadline", "", "RFC3339 deadline timestamp")
	createEscrowCmd.Flags().StringVar(&escTask, "task", "", "Task description")
	createEscrowCmd.Flags().StringVar(&escPricing, "pricing", "per_execution", "Pricing model: per_execution, subscription, or tiered")

	_ = createEscrowCmd.MarkFlagRequired("requester")
	_ = createEscrowCmd.MarkFlagRequired("agent-id")
	_ = createEscrowCmd.MarkFlagRequired("service-hash")
	_ = createEscrowCmd.MarkFlagRequired("payment")
	_ = createEscrowCmd.MarkFlagRequired("deadline")
}

// ── release-escrow ────────────────────────────────────────────────────────────

var (
	relAgentID       string
	relExecutionID   string
	relTaskCompleted bool
)

var releaseEscrowCmd = &cobra.Command{
	Use:   "release-escrow <escrow-id>",
	Short: "Submit an execution proof and release an escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		proof := model.ExecutionProof{
			AgentID:       relAgentID,
			ExecutionID:   relExecutionID,
			Timestamp:     time.Now().UTC(),
			TaskCompleted: relTaskCompleted,
		}
		proof.ProofHash = hashing.MustHash(proof.HashableFields())
		err := c.do(context.Background(), http.MethodPost, "/api/v1/escrows/"+args[0]+"/release", map[string]any{
			"proof": proof,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	releaseEscrowCmd.Flags().StringVar(&relAgentID, "agent-id", "", "Executing agent's identifier")
	releaseEscrowCmd.Flags().StringVar(&relExecutionID, "execution-id", "", "Unique execution identifier (replay-protection key)")
	releaseEscrowCmd.Flags().BoolVar(&relTaskCompleted, "completed", true, "Whether the task completed successfully")

	_ = releaseEscrowCmd.MarkFlagRequired("agent-id")
	_ = releaseEscrowCmd.MarkFlagRequired("execution-id")
}

// ── dispute-escrow / arbitrate-escrow ────────────────────────────────────────

var disputeReason string

var disputeEscrowCmd = &cobra.Command{
	Use:   "dispute-escrow <escrow-id>",
	Short: "Raise a dispute against an escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/escrows/"+args[0]+"/dispute", map[string]any{
			"reason": disputeReason,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	disputeEscrowCmd.Flags().StringVar(&disputeReason, "reason", "", "Reason for the dispute")
	_ = disputeEscrowCmd.MarkFlagRequired("reason")
}

var (
	arbitrateResolution string
	arbitrateArbitrator string
)

var arbitrateEscrowCmd = &cobra.Command{
	Use:   "arbitrate-escrow <escrow-id>",
	Short: "Resolve a disputed escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/escrows/"+args[0]+"/arbitrate", map[string]any{
			"resolution": arbitrateResolution,
			"arbitrator": arbitrateArbitrator,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	arbitrateEscrowCmd.Flags().StringVar(&arbitrateResolution, "resolution", "", "Resolution status: released or refunded")
	arbitrateEscrowCmd.Flags().StringVar(&arbitrateArbitrator, "arbitrator", "", "Identifier of the arbitrating party")
	_ = arbitrateEscrowCmd.MarkFlagRequired("resolution")
	_ = arbitrateEscrowCmd.MarkFlagRequired("arbitrator")
}

// ── distribute ────────────────────────────────────────────────────────────────

var (
	distTotal    string
	distPeriodID string
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Distribute a revenue pool for a period across active shares",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/revenue/distributions", map[string]any{
			"total":     distTotal,
			"period_id": distPeriodID,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	distributeCmd.Flags().StringVar(&distTotal, "total", "", "Total amount to distribute, e.g. 1000.000000")
	distributeCmd.Flags().StringVar(&distPeriodID, "period-id", "", "Distribution period identifier")

	_ = distributeCmd.MarkFlagRequired("total")
	_ = distributeCmd.MarkFlagRequired("period-id")
}

// ── claim ─────────────────────────────────────────────────────────────────────

var claimRecipient string

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim accumulated revenue-share rewards",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/revenue/claims", map[string]any{
			"recipient": claimRecipient,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	claimCmd.Flags().StringVar(&claimRecipient, "recipient", "", "Recipient address claiming pending rewards")
	_ = claimCmd.MarkFlagRequired("recipient")
}

// ── register-cross-chain ──────────────────────────────────────────────────────

var (
	xchainAgentID  string
	xchainNetworks []string
)

var registerCrossChainCmd = &cobra.Command{
	Use:   "register-cross-chain",
	Short: "Advertise an agent's service on additional chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/cross-chain/registrations", map[string]any{
			"agent_id": xchainAgentID,
			"networks": xchainNetworks,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	registerCrossChainCmd.Flags().StringVar(&xchainAgentID, "agent-id", "", "Agent being advertised")
	registerCrossChainCmd.Flags().StringSliceVar(&xchainNetworks, "network", nil, "Network name, e.g. cardano, ethereum, polygon, solana (repeatable)")
	_ = registerCrossChainCmd.MarkFlagRequired("agent-id")
	_ = registerCrossChainCmd.MarkFlagRequired("network")
}

// ── subscribe ─────────────────────────────────────────────────────────────────

var (
	subSubject    string
	subEventTypes []string
	subCallback   string
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe to event notifications for a subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL)
		var out map[string]any
		err := c.do(context.Background(), http.MethodPost, "/api/v1/subscriptions?subject="+subSubject, map[string]any{
			"events": subEventTypes,
			"url":    subCallback,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subSubject, "subject", "", "Subject this subscription is keyed to")
	subscribeCmd.Flags().StringSliceVar(&subEventTypes, "event", nil, "Event type to subscribe to (repeatable)")
	subscribeCmd.Flags().StringVar(&subCallback, "callback-url", "", "HTTPS URL to receive signed deliveries")

	_ = subscribeCmd.MarkFlagRequired("subject")
	_ = subscribeCmd.MarkFlagRequired("event")
	_ = subscribeCmd.MarkFlagRequired("callback-url")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agentcorectl CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentcorectl %s\n", version)
	},
}
