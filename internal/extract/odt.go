package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractODT handles OpenDocument text and RTF via format sniffing, since
// both arrive through the same office-document pipeline.
func extractODT(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return text, nil
}
