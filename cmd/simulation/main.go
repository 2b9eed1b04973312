package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minAuctions     = 5
	maxAuctions     = 20
	biddersPerWar   = 4
	bidsPerBidder   = 3
	serverAddress   = "http://localhost:8080"
	simulationJWT   = "auction-secret-key"
	auctionDuration = 8 // seconds; short so the run can observe closings
)

var itemTitles = []string{
	"Vintage Camera", "Signed First Edition", "Mechanical Keyboard",
	"Art Deco Lamp", "Road Bike", "Analog Synthesizer",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
	mu         sync.Mutex
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the auction API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":   {name: "Authentication"},
			"create": {name: "Create Auction"},
			"start":  {name: "Start Auction"},
			"bid":    {name: "Place Bid"},
			"proxy":  {name: "Setup Proxy Bid"},
			"get":    {name: "Get Auction"},
			"close":  {name: "Close Auction"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// post sends an authenticated POST/PUT request and decodes the envelope data
// field into out
func (sc *simulationClient) post(method, path, statKey string, payload interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].addFailure()
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].addFailure()
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

func (sc *simulationClient) createAuction(title string, startingPrice, reservePrice float64) (*types.Auction, error) {
	payload := map[string]interface{}{
		"title":                    title,
		"starting_price":           startingPrice,
		"reserve_price":            reservePrice,
		"min_increment":            1.0,
		"duration_seconds":         auctionDuration,
		"auto_extend":              true,
		"extend_threshold_seconds": 3,
		"extend_by_seconds":        2,
		"max_extensions":           2,
	}

	var created types.Auction
	if err := sc.post("POST", "/api/v1/auctions", "create", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (sc *simulationClient) startAuction(auctionID string) (*types.Auction, error) {
	var started types.Auction
	path := fmt.Sprintf("/api/v1/auctions/%s/start", auctionID)
	if err := sc.post("POST", path, "start", nil, &started); err != nil {
		return nil, err
	}
	return &started, nil
}

func (sc *simulationClient) placeBid(auctionID string, amount float64) (*types.BidResponse, error) {
	var result types.BidResponse
	path := fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID)
	if err := sc.post("POST", path, "bid", map[string]float64{"amount": amount}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) setupProxyBid(auctionID string, maxAmount float64) (*types.ProxyBidResponse, error) {
	var result types.ProxyBidResponse
	path := fmt.Sprintf("/api/v1/auctions/%s/proxy-bid", auctionID)
	if err := sc.post("PUT", path, "proxy", map[string]float64{"max_amount": maxAmount}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) getAuction(auctionID string) (*types.Auction, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v1/auctions/%s", sc.baseURL, auctionID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get auction failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool          `json:"success"`
		Data    types.Auction `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

func (sc *simulationClient) closeAuction(auctionID string) (*types.CloseResponse, error) {
	var result types.CloseResponse
	path := fmt.Sprintf("/api/v1/internal/auctions/%s/close", auctionID)
	if err := sc.post("POST", path, "close", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the bidding simulation
// It starts a local API server and simulates concurrent bidding wars
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetAuctions := rand.Intn(maxAuctions-minAuctions) + minAuctions
	log.Info().Int("target_auctions", targetAuctions).Msg("Starting simulation")

	stats := struct {
		TotalAuctions int
		Sold          int
		EndedNoSale   int
		TotalBids     int
		FailedBids    int
		Extensions    int
		TotalValue    float64
		StartTime     time.Time
		mu            sync.Mutex
	}{StartTime: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < targetAuctions; i++ {
		wg.Add(1)
		go func(warID int) {
			defer wg.Done()

			title := itemTitles[rand.Intn(len(itemTitles))]
			startingPrice := float64(rand.Intn(90) + 10)
			// Roughly a third of auctions carry a reserve the war may not reach
			reservePrice := 0.0
			if rand.Intn(3) == 0 {
				reservePrice = startingPrice + float64(rand.Intn(30)+10)
			}

			created, err := simClient.createAuction(title, startingPrice, reservePrice)
			if err != nil {
				log.Error().Err(err).Int("war_id", warID).Msg("Failed to create auction")
				return
			}
			if _, err := simClient.startAuction(created.AuctionID); err != nil {
				log.Error().Err(err).Str("auction_id", created.AuctionID).Msg("Failed to start auction")
				return
			}

			// One bidder arms a proxy, the rest bid manually
			proxyMax := startingPrice + float64(rand.Intn(40)+20)
			if _, err := simClient.setupProxyBid(created.AuctionID, proxyMax); err != nil {
				log.Warn().Err(err).Str("auction_id", created.AuctionID).Msg("Proxy bid setup rejected")
			}

			price := startingPrice
			for round := 0; round < biddersPerWar*bidsPerBidder; round++ {
				price += float64(rand.Intn(5) + 1)
				result, err := simClient.placeBid(created.AuctionID, price)
				if err != nil {
					stats.mu.Lock()
					stats.FailedBids++
					stats.mu.Unlock()
					// Rejections are part of the war; fetch the real price and move on
					if current, gerr := simClient.getAuction(created.AuctionID); gerr == nil {
						price = current.CurrentPrice
					}
					continue
				}

				stats.mu.Lock()
				stats.TotalBids++
				if result.WasExtended {
					stats.Extensions++
				}
				stats.mu.Unlock()

				// The proxy may have pushed past our manual amount
				price = result.FinalPrice
				time.Sleep(time.Duration(rand.Intn(400)) * time.Millisecond)
			}

			// Wait out the deadline (plus any extensions) and close
			time.Sleep(auctionDuration*time.Second + 5*time.Second)
			closed, err := simClient.closeAuction(created.AuctionID)
			if err != nil {
				log.Error().Err(err).Str("auction_id", created.AuctionID).Msg("Failed to close auction")
				return
			}

			stats.mu.Lock()
			stats.TotalAuctions++
			if closed.Status == types.AuctionStatusSold {
				stats.Sold++
				stats.TotalValue += closed.FinalPrice
			} else {
				stats.EndedNoSale++
			}
			stats.mu.Unlock()

			log.Info().
				Str("auction_id", created.AuctionID).
				Str("status", closed.Status).
				Str("winner_id", closed.WinnerID).
				Float64("final_price", closed.FinalPrice).
				Bool("reserve_met", closed.ReserveMet).
				Msg("Auction closed")
		}(i)
	}

	wg.Wait()

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BIDDING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Auction Statistics
------------------
Total Auctions:   %d
Sold:             %d
Ended (no sale):  %d
Bids Placed:      %d
Bids Rejected:    %d
Deadline Extends: %d
Total Value:      $%.2f
Duration:         %v
`, stats.TotalAuctions, stats.Sold, stats.EndedNoSale,
		stats.TotalBids, stats.FailedBids, stats.Extensions,
		stats.TotalValue, duration.Round(time.Millisecond))

	fmt.Println("\n" + strings.Repeat("=", 80))

	soldRate := 0.0
	if stats.TotalAuctions > 0 {
		soldRate = float64(stats.Sold) / float64(stats.TotalAuctions) * 100
	}
	log.Info().
		Float64("sold_rate", soldRate).
		Int("total_auctions", stats.TotalAuctions).
		Int("total_bids", stats.TotalBids).
		Float64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// startServer initializes and starts the auction API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(simulationJWT)
	auctionService := auction.NewService(db, nil)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	// Setup routes
	setupRoutes(router, authHandlers, auctionHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Auction routes
		auctions := v1.Group("/auctions")
		auctions.Use(middleware.JWTAuth(simulationJWT))
		{
			auctions.POST("", auctionHandlers.CreateAuctionHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.POST("/:auction_id/start", auctionHandlers.StartAuctionHandler())
			auctions.POST("/:auction_id/bids", auctionHandlers.PlaceBidHandler())
			auctions.PUT("/:auction_id/proxy-bid", auctionHandlers.SetupProxyBidHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(simulationJWT))
		{
			internal.POST("/auctions/:auction_id/close", auctionHandlers.CloseAuctionHandler())
			internal.POST("/auctions/sweep", auctionHandlers.SweepHandler())
		}
	}
}
