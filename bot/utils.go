package bot

import "time"

// RobustExecute calls f up to n times with the delay d between the calls until
// f reports success. It returns false if all attempts failed.
func RobustExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		if i < n-1 {
			time.Sleep(d)
		}
	}
	return false
}
