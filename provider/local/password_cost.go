//go:build !race

package local

const defaultHashCost = 12

func passwordHashCost() int {
	return defaultHashCost
}
