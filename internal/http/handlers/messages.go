package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	codeBadRequest         = "bad_request"
	codeInvalidConfig      = "invalid_config"
	codeBusy               = "busy"
	codeCredentialRequired = "credential_required"
	codeCredentialFailed   = "credential_failed"
	codeInvalidState       = "invalid_state"
	codeNotFound           = "not_found"
	codeInternal           = "internal"
)

var messageCatalog = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, entries map[string]string) {
		for key, msg := range entries {
			_ = b.SetString(tag, key, msg)
		}
	}
	set(language.English, map[string]string{
		codeBadRequest:         "invalid request payload",
		codeInvalidConfig:      "invalid generation settings",
		codeBusy:               "a video is already being generated",
		codeCredentialRequired: "select an API key before generating",
		codeCredentialFailed:   "API key selection failed",
		codeInvalidState:       "action not available right now",
		codeNotFound:           "video not found",
		codeInternal:           "internal error",
	})
	set(language.Indonesian, map[string]string{
		codeBadRequest:         "payload permintaan tidak valid",
		codeInvalidConfig:      "pengaturan pembuatan video tidak valid",
		codeBusy:               "video lain sedang dibuat",
		codeCredentialRequired: "pilih API key sebelum membuat video",
		codeCredentialFailed:   "pemilihan API key gagal",
		codeInvalidState:       "aksi tidak tersedia saat ini",
		codeNotFound:           "video tidak ditemukan",
		codeInternal:           "terjadi kesalahan internal",
	})
	return b
}()

var printers = map[string]*message.Printer{
	"en": message.NewPrinter(language.English, message.Catalog(messageCatalog)),
	"id": message.NewPrinter(language.Indonesian, message.Catalog(messageCatalog)),
}

// localize returns the message for code in locale, falling back to English.
func localize(locale, code string) string {
	p, ok := printers[locale]
	if !ok {
		p = printers["en"]
	}
	return p.Sprintf(code)
}
