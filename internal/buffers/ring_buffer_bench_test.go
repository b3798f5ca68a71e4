package buffers

import "testing"

func BenchmarkWriteOne(b *testing.B) {
	rb := NewRingBuffer[int](1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.WriteOne(i)
	}
}

func BenchmarkWriteBatch(b *testing.B) {
	rb := NewRingBuffer[int](1000)
	batch := make([]int, 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.Write(batch)
	}
}

func BenchmarkReadFrom(b *testing.B) {
	rb := NewRingBuffer[int](1000)
	rb.Write(make([]int, 1000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.ReadFrom(500)
	}
}

func BenchmarkReadAllFull(b *testing.B) {
	rb := NewRingBuffer[int](1000)
	rb.Write(make([]int, 1000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.ReadAll()
	}
}

func BenchmarkWriteOneWithEviction(b *testing.B) {
	rb := NewRingBuffer[int](1000)
	rb.Write(make([]int, 1000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.WriteOne(i)
	}
}

func BenchmarkConcurrentReadWrite(b *testing.B) {
	rb := NewRingBuffer[int](10000)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%2 == 0 {
				rb.WriteOne(i)
			} else {
				rb.ReadFrom(0)
			}
			i++
		}
	})
}
