package instance

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/transport"
)

// pluginSender dá aos plugins um canal de envio que roteia entre usuário
// e grupo pelo formato do destinatário
type pluginSender struct {
	instance *Instance
}

func (s pluginSender) SendText(ctx context.Context, jid, text string) (string, error) {
	if transport.IsGroupJID(jid) {
		return s.instance.SendGroupText(ctx, jid, text)
	}
	return s.instance.SendText(ctx, jid, text)
}

// renderQRCode converte o código em um data URL PNG base64
func renderQRCode(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	img := qr.Image(300)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}

	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// renderQRTerminal imprime o QR no terminal para pareamento local
func renderQRTerminal(code, phone string) {
	fmt.Printf("QR code for instance %s:\n", phone)
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
}

// credentialsDir é o diretório de blobs de credencial da instância
func credentialsDir(cfg *config.Config, phone string) string {
	return filepath.Join(cfg.Auth.AuthRoot, phone)
}

// ensureCredentialsDir cria o diretório de credenciais da instância
func ensureCredentialsDir(cfg *config.Config, phone string) error {
	if err := os.MkdirAll(credentialsDir(cfg, phone), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}
	return nil
}

// removeCredentials apaga o blob de credenciais do disco
func removeCredentials(cfg *config.Config, phone string, log logger.Logger) {
	dir := credentialsDir(cfg, phone)
	if err := os.RemoveAll(dir); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to remove credentials")
	}
}
