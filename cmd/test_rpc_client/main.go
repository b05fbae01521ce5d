package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	grpc_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/in/grpc"
	grpc_pool "github.com/JoeShih716/go-cash-ledger/pkg/grpc"
)

// 壓測用客戶端：建立一批帳戶後隨機互轉，最後驗證總額守恆
func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	accounts := flag.Int("accounts", 100, "number of accounts to create")
	seed := flag.Int64("seed", 100000, "initial credit per account (minor units)")
	total := flag.Int("count", 100000, "number of transfers")
	concurrency := flag.Int("concurrency", 200, "in-flight requests")
	flag.Parse()

	pool := grpc_pool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := grpc_adapter.NewLedgerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 1. 建立帳戶並入金
	ids := make([]string, *accounts)
	for i := range ids {
		out, err := c.CreateAccount(ctx, mustStruct(map[string]any{
			"name": "bench-" + uuid.NewString(),
		}))
		if err != nil {
			log.Fatalf("create account %d: %v", i, err)
		}
		ids[i] = out.GetFields()["id"].GetStringValue()

		if _, err := c.Credit(ctx, mustStruct(map[string]any{"id": ids[i], "amount": *seed})); err != nil {
			log.Fatalf("credit %s: %v", ids[i], err)
		}
	}
	expected := int64(*accounts) * *seed

	// 2. 併發隨機轉帳
	var ok, rejected atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)
	start := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			from := ids[rand.Intn(len(ids))]
			to := ids[rand.Intn(len(ids))]
			_, err := c.Transfer(ctx, mustStruct(map[string]any{
				"from":   from,
				"to":     to,
				"amount": rand.Int63n(max(*seed/10, 1)) + 1,
			}))
			if err != nil {
				rejected.Add(1)
				if idx%10000 == 0 {
					log.Printf("Transfer %d failed: %v", idx, err)
				}
				return
			}
			ok.Add(1)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 3. 驗證總額
	var sum int64
	for _, id := range ids {
		out, err := c.GetBalance(ctx, mustStruct(map[string]any{"id": id}))
		if err != nil {
			log.Fatalf("get balance %s: %v", id, err)
		}
		balance := int64(out.GetFields()["account"].GetStructValue().GetFields()["balance"].GetNumberValue())
		if balance < 0 {
			log.Fatalf("account %s has negative balance %d", id, balance)
		}
		sum += balance
	}

	fmt.Printf("Completed %d transfers (%d ok, %d rejected) in %v\n", *total, ok.Load(), rejected.Load(), elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	if sum != expected {
		log.Fatalf("conservation violated: expected %d, got %d", expected, sum)
	}
	fmt.Printf("Total balance conserved: %d\n", sum)
}

func mustStruct(m map[string]any) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	return s
}
