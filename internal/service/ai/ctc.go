package ai

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ctcGreedyDecode takes the best class per time step, collapses repeats and
// drops blanks. classMajor selects between [classes, steps] and
// [steps, classes] layouts.
func ctcGreedyDecode(logits []float32, steps, classes int, classMajor bool, blank int, charset []string) string {
	at := func(t, c int) float32 {
		if classMajor {
			return logits[c*steps+t]
		}
		return logits[t*classes+c]
	}

	var sb strings.Builder
	prev := -1
	for t := 0; t < steps; t++ {
		best := 0
		for c := 1; c < classes; c++ {
			if at(t, c) > at(t, best) {
				best = c
			}
		}
		if best != blank && best != prev && best < len(charset) {
			sb.WriteString(charset[best])
		}
		prev = best
	}
	return sb.String()
}

// loadCharset reads one class label per line. Empty lines are kept so class
// indices stay aligned with the model output.
func loadCharset(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open charset: %w", err)
	}
	defer file.Close()

	var charset []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		charset = append(charset, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read charset: %w", err)
	}
	if len(charset) < 2 {
		return nil, fmt.Errorf("charset %s has fewer than two classes", path)
	}
	return charset, nil
}
