package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/evaluator"
	"github.com/OrlandoBitencourt/bandeira/internal/flagstore"
	"github.com/OrlandoBitencourt/bandeira/internal/service"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
)

func rolloutFlag() domain.FeatureFlag {
	return domain.FeatureFlag{
		Name:              "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 25,
		Version:           1,
	}
}

// setupService builds a service over a memory store and the given cache
func setupService(b *testing.B, c cache.Cache) *service.Service {
	b.Helper()

	db := storage.NewMemoryStore()
	if err := db.Put(context.Background(), rolloutFlag()); err != nil {
		b.Fatal(err)
	}

	fs, err := flagstore.New(flagstore.WithStorage(db), flagstore.WithCache(c))
	if err != nil {
		b.Fatal(err)
	}
	return service.New(fs)
}

func users(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user-%d", i)
	}
	return out
}

// BenchmarkEvaluate_Pure measures bucketing alone
func BenchmarkEvaluate_Pure(b *testing.B) {
	flag := rolloutFlag()
	ids := users(1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = evaluator.Evaluate(flag, ids[i%len(ids)])
	}
}

// BenchmarkEvaluate_FullRollout takes the no-hash path
func BenchmarkEvaluate_FullRollout(b *testing.B) {
	flag := rolloutFlag()
	flag.RolloutPercentage = 100

	for i := 0; i < b.N; i++ {
		_ = evaluator.Evaluate(flag, "user-123")
	}
}

// BenchmarkService_Evaluate_CacheHit reads through a warm ristretto cache
func BenchmarkService_Evaluate_CacheHit(b *testing.B) {
	mem, err := cache.NewMemoryCache(cache.DefaultMemoryConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer mem.Close()

	svc := setupService(b, mem)
	ctx := context.Background()
	ids := users(1024)

	// warm
	if _, err := svc.Evaluate(ctx, "checkout_v2", "warmup"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Evaluate(ctx, "checkout_v2", ids[i%len(ids)]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkService_Evaluate_NoCache goes to the store on every call
func BenchmarkService_Evaluate_NoCache(b *testing.B) {
	svc := setupService(b, cache.NewNoopCache())
	ctx := context.Background()
	ids := users(1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Evaluate(ctx, "checkout_v2", ids[i%len(ids)]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkService_Evaluate_Parallel exercises concurrent readers
func BenchmarkService_Evaluate_Parallel(b *testing.B) {
	mem, err := cache.NewMemoryCache(cache.DefaultMemoryConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer mem.Close()

	svc := setupService(b, mem)
	ctx := context.Background()
	ids := users(1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := svc.Evaluate(ctx, "checkout_v2", ids[i%len(ids)]); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
