//go:build !race

package mumblepad

const raceEnabled = false
