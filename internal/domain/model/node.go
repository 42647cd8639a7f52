// Пакет model — доменные модели Resolver Module.
// Node — 32-байтный непрозрачный идентификатор (аналог хэша имени),
// Address — 20-байтная ссылка на аккаунт, Word — 32-байтное машинное слово.
package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Размеры идентификаторов в байтах.
const (
	NodeLength    = 32
	AddressLength = 20
	WordLength    = 32
)

// Node — идентификатор узла реестра. Нулевое значение недопустимо для записи.
type Node [NodeLength]byte

// Address — ссылка на аккаунт (адрес записи, идентификатор вызывающего).
type Address [AddressLength]byte

// Word — 32-байтное значение (координаты публичного ключа, digest кэша).
type Word [WordLength]byte

// HexBytes — байтовый массив произвольной длины, сериализуемый как 0x-hex.
type HexBytes []byte

// IsZero проверяет, что узел нулевой.
func (n Node) IsZero() bool { return n == Node{} }

// Hex возвращает 0x-представление узла.
func (n Node) Hex() string { return encodeHex(n[:]) }

func (n Node) String() string { return n.Hex() }

// MarshalText реализует encoding.TextMarshaler (JSON как 0x-строка).
func (n Node) MarshalText() ([]byte, error) { return []byte(n.Hex()), nil }

// UnmarshalText реализует encoding.TextUnmarshaler.
func (n *Node) UnmarshalText(text []byte) error {
	parsed, err := ParseNode(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseNode разбирает 0x-hex строку длиной ровно 32 байта.
// Нулевой узел разбирается успешно — его отклоняет сервисный слой.
func ParseNode(s string) (Node, error) {
	var n Node
	if err := decodeFixedHex(s, n[:]); err != nil {
		return Node{}, fmt.Errorf("некорректный node: %w", err)
	}
	return n, nil
}

// IsZero проверяет, что адрес нулевой.
func (a Address) IsZero() bool { return a == Address{} }

// Hex возвращает 0x-представление адреса (lowercase).
func (a Address) Hex() string { return encodeHex(a[:]) }

func (a Address) String() string { return a.Hex() }

// MarshalText реализует encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText реализует encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress разбирает 0x-hex строку длиной ровно 20 байт.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("некорректный адрес: %w", err)
	}
	return a, nil
}

// Hex возвращает 0x-представление слова.
func (w Word) Hex() string { return encodeHex(w[:]) }

func (w Word) String() string { return w.Hex() }

// IsZero проверяет, что слово нулевое.
func (w Word) IsZero() bool { return w == Word{} }

// MarshalText реализует encoding.TextMarshaler.
func (w Word) MarshalText() ([]byte, error) { return []byte(w.Hex()), nil }

// UnmarshalText реализует encoding.TextUnmarshaler.
func (w *Word) UnmarshalText(text []byte) error {
	parsed, err := ParseWord(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWord разбирает 0x-hex строку длиной ровно 32 байта.
func ParseWord(s string) (Word, error) {
	var w Word
	if err := decodeFixedHex(s, w[:]); err != nil {
		return Word{}, fmt.Errorf("некорректное 32-байтное значение: %w", err)
	}
	return w, nil
}

// MarshalText реализует encoding.TextMarshaler.
func (b HexBytes) MarshalText() ([]byte, error) { return []byte(encodeHex(b)), nil }

// UnmarshalText реализует encoding.TextUnmarshaler. Пустая строка и "0x" — пустой массив.
func (b *HexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("некорректная hex-строка: %w", err)
	}
	*b = decoded
	return nil
}

// encodeHex кодирует байты в 0x-hex.
func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// decodeFixedHex декодирует 0x-hex строку в dst, требуя точного совпадения длины.
func decodeFixedHex(s string, dst []byte) error {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != len(dst)*2 {
		return fmt.Errorf("ожидалось %d hex-символов, получено %d", len(dst)*2, len(raw))
	}
	if _, err := hex.Decode(dst, []byte(raw)); err != nil {
		return fmt.Errorf("некорректная hex-строка %q: %w", s, err)
	}
	return nil
}
