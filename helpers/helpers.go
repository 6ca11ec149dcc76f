package helpers

import (
	// Go Internal Packages
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	// Local Packages
	models "payflow/models"
)

// PrintStruct prints a given struct to stdout in pretty format with indent
func PrintStruct(v any) {
	_ = WriteStruct(os.Stdout, v)
}

func WriteStruct(w io.Writer, v any) error {
	res, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(res))
	return err
}

// StatusLine renders one observed transaction state for terminal output.
func StatusLine(at time.Time, tx models.Transaction) string {
	line := fmt.Sprintf("%s %s %s %s", at.Format(time.TimeOnly), tx.RequestNumber, tx.Status, tx.Amount)
	if tx.Status == models.StatusPending && tx.QRCode != "" {
		line += " pix=" + tx.QRCode
	}
	return line
}
