package av

// Rescale converts n from one time base to another, rounding to nearest.
func Rescale(n int64, from, to Rational) int64 {
	if from.IsZero() || to.IsZero() {
		return n
	}
	num := n * int64(from.Num) * int64(to.Den)
	den := int64(from.Den) * int64(to.Num)
	if num >= 0 {
		return (num + den/2) / den
	}
	return (num - den/2) / den
}
