package application

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"fingerprint-reader/internal/domain"
)

// DataURIPrefix префикс data URI для PNG-изображения отпечатка.
// Пробел после запятой сохранен: страница и сборщик ожидают именно такую строку.
const DataURIPrefix = "data:image/png;base64, "

// ErrUntrustedSample сэмпл не с локального устройства
var ErrUntrustedSample = errors.New("сэмпл не получен с локального устройства")

// URLSafeToStd перекодирует URL-safe base64 (с выравниванием или без) в стандартный base64
func URLSafeToStd(s string) (string, error) {
	raw, err := DecodeURLSafe(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeURLSafe декодирует URL-safe base64 с выравниванием или без.
// Ненулевые хвостовые биты считаются ошибкой, поэтому перекодирование
// в стандартный алфавит меняет только символы - и _ и выравнивание.
func DecodeURLSafe(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, errors.New("пустой сэмпл")
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("некорректный base64url: %w", err)
	}
	return raw, nil
}

// TrustDeviceImage строит data URI из сэмпла и помечает его как безопасный URL.
//
// Это единственное место, где строка превращается в template.URL в обход
// санитайзера html/template. Допускаются только сэмплы с локального устройства;
// строки из сети сюда попадать не должны.
func TrustDeviceImage(sample domain.Sample) (template.URL, []byte, error) {
	if sample.Origin != domain.OriginDevice {
		return "", nil, ErrUntrustedSample
	}

	raw, err := DecodeURLSafe(sample.Data)
	if err != nil {
		return "", nil, err
	}

	return template.URL(DataURIPrefix + base64.StdEncoding.EncodeToString(raw)), raw, nil
}
