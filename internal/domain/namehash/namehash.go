// Пакет namehash — вычисление идентификаторов узлов по именам (алгоритм ENS namehash)
// и digest-значений для слотов кэша. Хэш-функция — Keccak-256 (legacy, не SHA3-256).
package namehash

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// ErrEmptyLabel — имя содержит пустую метку ("a..b", ".eth").
var ErrEmptyLabel = errors.New("пустая метка в имени")

// Keccak256 возвращает Keccak-256 от конкатенации аргументов.
func Keccak256(data ...[]byte) model.Word {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out model.Word
	copy(out[:], h.Sum(nil))
	return out
}

// Of вычисляет node для имени вида "label.parent.tld".
// Пустое имя соответствует корню (нулевой node).
func Of(name string) (model.Node, error) {
	var node model.Node
	if name == "" {
		return node, nil
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i] == "" {
			return model.Node{}, fmt.Errorf("%w: %q", ErrEmptyLabel, name)
		}
		labelHash := Keccak256([]byte(labels[i]))
		node = model.Node(Keccak256(node[:], labelHash[:]))
	}
	return node, nil
}

// AddressWord кодирует адрес в 32-байтное слово (выравнивание вправо, нули слева).
// Кодирование обратимо — см. AddressFromWord.
func AddressWord(a model.Address) model.Word {
	var w model.Word
	copy(w[model.WordLength-model.AddressLength:], a[:])
	return w
}

// AddressFromWord извлекает адрес из младших 20 байт слова.
func AddressFromWord(w model.Word) model.Address {
	var a model.Address
	copy(a[:], w[model.WordLength-model.AddressLength:])
	return a
}

// PublicKeyDigest — digest пары координат.
func PublicKeyDigest(pk model.PublicKey) model.Word {
	return Keccak256(pk.X[:], pk.Y[:])
}
