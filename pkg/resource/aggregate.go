package resource

// Append returns an Aggregate that appends every response, keeping at
// most keep of the most recent ones. keep <= 0 keeps everything.
func Append[T any](keep int) Aggregate[[]T, T] {
	return func(acc []T, resp T) []T {
		next := make([]T, 0, len(acc)+1)
		next = append(next, acc...)
		next = append(next, resp)
		if keep > 0 && len(next) > keep {
			next = next[len(next)-keep:]
		}
		return next
	}
}

// Last returns an Aggregate that keeps only the most recent response.
func Last[T any]() Aggregate[T, T] {
	return func(_ T, resp T) T {
		return resp
	}
}

// Count returns an Aggregate that counts responses.
func Count[T any]() Aggregate[int, T] {
	return func(acc int, _ T) int {
		return acc + 1
	}
}
