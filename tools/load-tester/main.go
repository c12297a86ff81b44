package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/token"
)

// Read-path load generator. It mints a token for the given role and
// permissions and lists customers as fast as the limiter allows.
func main() {
	targetURL := flag.String("url", "http://localhost:3000/customers", "Target URL for the read")
	secret := flag.String("secret", "", "JWT secret shared with the server")
	role := flag.String("role", "user", "Role to put in the token")
	customers := flag.String("customers", "", "Comma separated customer ids the caller may see")
	projects := flag.String("projects", "", "Comma separated project ids the caller may see")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required")
	}

	creds := domain.Credentials{
		Role: domain.Role(*role),
		Permissions: domain.PermissionSet{
			Customers: parseIDs(*customers),
			Projects:  parseIDs(*projects),
		},
	}
	bearer, err := token.Generate(creds, "load-tester", *secret, *duration+time.Minute)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Role: %s", *concurrency, *duration, *rps, *role)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *rps/10+1)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, *targetURL, nil)
				if err != nil {
					continue
				}
				req.Header.Set("Authorization", "Bearer "+bearer)
				req.Header.Set("X-Request-ID", uuid.NewString())

				resp, err := client.Do(req)
				if err != nil {
					errorCount.Add(1)
					continue
				}

				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}()
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}

func parseIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("invalid id %q: %v", part, err)
		}
		ids = append(ids, id)
	}
	return ids
}
