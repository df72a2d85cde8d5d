package idgen

import (
	"testing"
)

func BenchmarkParse(b *testing.B) {
	for b.Loop() {
		_, _ = Parse(`ORD-{Date}-{ts:TimeCount=150405,1000,%s%03d}-{Const=a\,b}`)
	}
}

func BenchmarkCounter_Next(b *testing.B) {
	c, _ := NewCounter(CounterConfig{MaxCount: 1 << 40})
	for b.Loop() {
		_, _, _ = c.Next()
	}
}

func BenchmarkGenerator_Generate(b *testing.B) {
	g := MustCompile("ORD-{TimeCount=20060102150405,,%s%06d}", Builtin())
	for b.Loop() {
		_, _ = g.Generate()
	}
}

func BenchmarkGenerator_Generate_Parallel(b *testing.B) {
	g := MustCompile("ORD-{TimeCount=,1099511627776}", Builtin())
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = g.Generate()
		}
	})
}

func BenchmarkSnowflake_Next(b *testing.B) {
	sf, _ := NewSnowflake(1)
	for b.Loop() {
		_, _ = sf.NextInt64()
	}
}

func BenchmarkUUID(b *testing.B) {
	g := MustCompile("{UUID}", Builtin())
	for b.Loop() {
		_, _ = g.Generate()
	}
}

func BenchmarkULID(b *testing.B) {
	g := MustCompile("{ULID}", Builtin())
	for b.Loop() {
		_, _ = g.Generate()
	}
}
