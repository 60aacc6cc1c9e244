// Command fxclient-probe drives the client against a live backend as a
// deployment smoke check: health, login, a rate quote, one conversion, the
// history page, and logout, printing every notification the run produces.
//
// Session persistence uses Redis when -redis-addr (or REDIS_ADDR) is set,
// otherwise an embedded miniredis so the probe stays self-contained.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	fxclient "github.com/fxtrail/fxclient"
	"github.com/fxtrail/fxclient/notify"
)

func main() {
	var (
		apiURL    = flag.String("api-url", os.Getenv("FXCLIENT_API_URL"), "backend base URL")
		email     = flag.String("email", "", "account email")
		password  = flag.String("password", "", "account password")
		from      = flag.String("from", "USD", "quote source currency")
		to        = flag.String("to", "EUR", "quote target currency")
		amount    = flag.Float64("amount", 100, "conversion amount; 0 skips the conversion step")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		timeout   = flag.Duration("timeout", 30*time.Second, "per-call timeout")
	)
	flag.Parse()

	if *apiURL == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "api-url, email, and password are required")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var rdb redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
	}
	defer cleanup()

	sink := notify.NewChannelSink(64)
	client, err := fxclient.New().
		WithBaseURL(*apiURL).
		WithRedis(rdb).
		WithNotifier(sink).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		client.Close()
		drainNotifications(sink)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		fail("health", err)
	}
	fmt.Println("health: ok")

	auth, err := client.Login(ctx, fxclient.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		fail("login", err)
	}
	fmt.Printf("login: %s <%s>\n", auth.User.Name, fxclient.MaskEmail(auth.User.Email))

	if claims, err := client.SessionClaims(); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("access token expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}

	currencies, err := client.SupportedCurrencies(ctx)
	if err != nil {
		fail("currencies", err)
	}
	fmt.Printf("currencies: %d supported\n", len(currencies))

	rate, err := client.Rate(ctx, *from, *to)
	if err != nil {
		fail("rate", err)
	}
	fmt.Printf("rate: 1 %s = %.6f %s\n", rate.FromCurrency, rate.Rate, rate.ToCurrency)

	if *amount > 0 {
		conversion, err := client.Convert(ctx, fxclient.ConversionRequest{
			FromCurrency: *from,
			ToCurrency:   *to,
			Amount:       *amount,
		})
		if err != nil {
			fail("convert", err)
		}
		fmt.Printf("convert: %.2f %s -> %.2f %s\n",
			conversion.Amount, conversion.FromCurrency,
			conversion.ConvertedAmount, conversion.ToCurrency)
	}

	history, err := client.Conversions(ctx, fxclient.ConversionListParams{Limit: 5})
	if err != nil {
		fail("conversions", err)
	}
	fmt.Printf("history: %d of %d entries\n", len(history.Items), history.Page.Total)

	if summary, err := client.Summary(ctx); err == nil {
		fmt.Printf("summary: %d conversions, %d currency pairs\n",
			summary.TotalConversions, summary.UniqueCurrencyPairs)
	}

	events, err := client.RecentEvents(ctx, 5)
	if err != nil {
		fail("events", err)
	}
	fmt.Printf("events: %d recent\n", len(events.Items))

	if err := client.Logout(ctx); err != nil {
		fail("logout", err)
	}
	fmt.Println("logout: ok")

	snapshot := client.MetricsSnapshot()
	fmt.Printf("calls=%d failed=%d refreshes=%d cacheHits=%d\n",
		snapshot.RequestsStarted, snapshot.RequestsFailed,
		snapshot.RefreshesAttempted, snapshot.CacheHits)
}

func drainNotifications(sink *notify.ChannelSink) {
	for {
		select {
		case n := <-sink.Notifications():
			fmt.Printf("notify[%s] %s: %s\n", n.Level, n.Operation, n.Message)
		default:
			return
		}
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", step, err)
	os.Exit(1)
}
