// multicall.go — пакетное выполнение операций «всё или ничего».
// Пакет выполняется под эксклюзивной блокировкой резолвера; перед
// первой записью в узел журнал сохраняет его состояние. Ошибка любой
// операции (или отмена контекста между операциями) откатывает пакет целиком.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// Имена операций пакета.
const (
	MethodSetAddr              = "setAddr"
	MethodSetName              = "setName"
	MethodSetContenthash       = "setContenthash"
	MethodSetPubkey            = "setPubkey"
	MethodSetText              = "setText"
	MethodSetTextRecords       = "setTextRecords"
	MethodSyncDAORecord        = "syncDAORecord"
	MethodSyncContractMetadata = "syncContractMetadata"
	MethodAddr                 = "addr"
	MethodName                 = "name"
	MethodContenthash          = "contenthash"
	MethodPubkey               = "pubkey"
	MethodText                 = "text"
	MethodTexts                = "texts"
	MethodHasRecord            = "hasRecord"
	MethodRecordInfo           = "recordInfo"
)

// Operation — закодированная операция пакета: имя и JSON-аргументы.
type Operation struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// NewOperation кодирует аргументы в Operation.
func NewOperation(method string, args any) (Operation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Operation{}, fmt.Errorf("кодирование аргументов %s: %w", method, err)
	}
	return Operation{Method: method, Args: raw}, nil
}

// Аргументы операций.
type (
	NodeArgs struct {
		Node model.Node `json:"node"`
	}
	SetAddrArgs struct {
		Node model.Node    `json:"node"`
		Addr model.Address `json:"addr"`
	}
	SetNameArgs struct {
		Node model.Node `json:"node"`
		Name string     `json:"name"`
	}
	SetContenthashArgs struct {
		Node model.Node     `json:"node"`
		Hash model.HexBytes `json:"hash"`
	}
	SetPubkeyArgs struct {
		Node model.Node `json:"node"`
		X    model.Word `json:"x"`
		Y    model.Word `json:"y"`
	}
	SetTextArgs struct {
		Node  model.Node `json:"node"`
		Key   string     `json:"key"`
		Value string     `json:"value"`
	}
	SetTextRecordsArgs struct {
		Node   model.Node `json:"node"`
		Keys   []string   `json:"keys"`
		Values []string   `json:"values"`
	}
	SyncDAOArgs struct {
		Node  model.Node `json:"node"`
		DAOID string     `json:"dao_id"`
	}
	SyncContractArgs struct {
		Node     model.Node    `json:"node"`
		Contract model.Address `json:"contract"`
	}
	TextArgs struct {
		Node model.Node `json:"node"`
		Key  string     `json:"key"`
	}
	TextsArgs struct {
		Node model.Node `json:"node"`
		Keys []string   `json:"keys"`
	}
)

// Multicall выполняет операции по порядку и возвращает их результаты.
// Мутации возвращают nil, чтения — прочитанное значение. При ошибке
// все эффекты пакета, включая счётчики и вытесненные слоты кэша,
// откатываются, возвращается *MulticallError.
func (s *ResolverService) Multicall(ctx context.Context, caller model.Address, ops []Operation) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ops) > s.maxBatch {
		multicallTotal.WithLabelValues(string(StatusRolledBack)).Inc()
		return nil, fmt.Errorf("%w: %w: операций %d, максимум %d",
			ErrMulticallFailed, ErrInvalidOperation, len(ops), s.maxBatch)
	}
	multicallOperations.Observe(float64(len(ops)))

	hits, misses := s.cache.Counters()
	j := newJournal(s.now(), s.totalRecords, s.totalTextRecords, hits, misses)
	s.journal = j

	results := make([]any, 0, len(ops))
	for i, op := range ops {
		err := ctx.Err()
		var res any
		if err == nil {
			res, err = s.execute(caller, op)
		}
		if err != nil {
			s.journal = nil
			s.totalRecords, s.totalTextRecords = j.rollback(s.repo, s.cache, s.now())
			recordsActive.Set(float64(s.totalRecords))
			multicallTotal.WithLabelValues(string(StatusRolledBack)).Inc()

			s.logger.WarnContext(ctx, "Пакет откатан",
				slog.String("tx_id", j.TransactionID),
				slog.Int("index", i),
				slog.String("method", op.Method),
				slog.String("error", err.Error()),
			)
			return nil, &MulticallError{
				TransactionID: j.TransactionID,
				Index:         i,
				Method:        op.Method,
				Err:           err,
			}
		}
		results = append(results, res)
	}

	s.journal = nil
	j.commit(s.now())
	multicallTotal.WithLabelValues(string(StatusCommitted)).Inc()
	s.logger.DebugContext(ctx, "Пакет выполнен",
		slog.String("tx_id", j.TransactionID),
		slog.Int("operations", len(ops)),
	)
	return results, nil
}

// execute декодирует и выполняет одну операцию под s.mu.Lock.
func (s *ResolverService) execute(caller model.Address, op Operation) (any, error) {
	switch op.Method {
	case MethodSetAddr:
		var a SetAddrArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setAddress(caller, a.Node, a.Addr)
	case MethodSetName:
		var a SetNameArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setName(caller, a.Node, a.Name)
	case MethodSetContenthash:
		var a SetContenthashArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setContentHash(caller, a.Node, a.Hash)
	case MethodSetPubkey:
		var a SetPubkeyArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setPublicKey(caller, a.Node, a.X, a.Y)
	case MethodSetText:
		var a SetTextArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setText(caller, a.Node, a.Key, a.Value)
	case MethodSetTextRecords:
		var a SetTextRecordsArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.setTextBatch(caller, a.Node, a.Keys, a.Values)
	case MethodSyncDAORecord:
		var a SyncDAOArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.syncDAORecord(caller, a.Node, a.DAOID)
	case MethodSyncContractMetadata:
		var a SyncContractArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return nil, s.syncContractMetadata(caller, a.Node, a.Contract)
	case MethodAddr:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.address(a.Node), nil
	case MethodName:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.name(a.Node), nil
	case MethodContenthash:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return model.HexBytes(s.contentHash(a.Node)), nil
	case MethodPubkey:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.publicKey(a.Node), nil
	case MethodText:
		var a TextArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.text(a.Node, a.Key), nil
	case MethodTexts:
		var a TextsArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.textBatch(a.Node, a.Keys), nil
	case MethodHasRecord:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.hasRecord(a.Node), nil
	case MethodRecordInfo:
		var a NodeArgs
		if err := decodeArgs(op, &a); err != nil {
			return nil, err
		}
		return s.recordInfo(a.Node), nil
	default:
		return nil, fmt.Errorf("%w: неизвестный метод %q", ErrInvalidOperation, op.Method)
	}
}

// decodeArgs строго декодирует аргументы: неизвестные поля — ошибка.
func decodeArgs(op Operation, dst any) error {
	if len(op.Args) == 0 {
		return fmt.Errorf("%w: %s без аргументов", ErrInvalidOperation, op.Method)
	}
	dec := json.NewDecoder(bytes.NewReader(op.Args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidOperation, op.Method, err)
	}
	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
