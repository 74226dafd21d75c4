package ptypes

// must panics on a non-nil error, for use in test setup where every error
// is a setup bug rather than an expected failure.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
