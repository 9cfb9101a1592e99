package repository

import "fmt"

func errNotProcessing(id string) error {
	return fmt.Errorf("asset %s not in processing state", id)
}

func errTerminal(id string) error {
	return fmt.Errorf("asset %s missing or terminal", id)
}
