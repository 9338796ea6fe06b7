package transport

import "strings"

// Classification indica como um erro do upstream deve ser tratado
type Classification string

const (
	ClassBenignMACRetry    Classification = "benign-mac-retry"
	ClassBenignStreamReset Classification = "benign-stream-reset"
	ClassFatal             Classification = "fatal"
)

// Classifier separa erros benignos do upstream de falhas reais. Substitui o
// redirecionamento do stderr global: erros benignos são apenas logados pelo
// chamador em nível debug.
type Classifier struct {
	transientCodes []string
}

// NewClassifier cria um classificador com o conjunto configurável de códigos
// de stream transientes
func NewClassifier(transientCodes []string) *Classifier {
	return &Classifier{transientCodes: transientCodes}
}

// Classify categoriza uma mensagem de erro do upstream
func (c *Classifier) Classify(msg string) Classification {
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "bad mac") || strings.Contains(lower, "failed to decrypt") {
		return ClassBenignMACRetry
	}

	if c.IsTransientStreamCode(msg) {
		return ClassBenignStreamReset
	}

	return ClassFatal
}

// IsTransientStreamCode verifica se o código pertence ao conjunto de falhas
// de stream consideradas transientes (ex.: stream reset durante leitura do
// QR). Um fechamento com esse código ignora a flag de restart manual.
func (c *Classifier) IsTransientStreamCode(code string) bool {
	if code == "" {
		return false
	}
	for _, t := range c.transientCodes {
		if t != "" && strings.Contains(code, t) {
			return true
		}
	}
	return false
}
