package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"NFTSentinel/internal/model"
)

// Book is the persisted set of simulated wallets keyed by user id.
type Book struct {
	Wallets   map[string]*model.WalletState `json:"wallets"`
	UpdatedAt time.Time                     `json:"updatedAt"`
}

// LoadState reads the wallet book from a JSON file. Returns an empty book if the file doesn't exist.
func LoadState(filePath string) (*Book, error) {
	book := &Book{Wallets: make(map[string]*model.WalletState)}
	if filePath == "" {
		return book, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return book, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, book); err != nil {
		return nil, err
	}
	if book.Wallets == nil {
		book.Wallets = make(map[string]*model.WalletState)
	}
	return book, nil
}

// SaveState writes the wallet book to a JSON file. An empty path keeps state in memory only.
func SaveState(filePath string, book *Book) error {
	book.UpdatedAt = time.Now()
	if filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
