package rmq

import "github.com/wyfcoding/rmqindex/xerrors"

// 本包返回的哨兵错误，调用方使用 errors.Is 判断。
var (
	ErrEmptyInput  = xerrors.ErrEmptyInput
	ErrOutOfRange  = xerrors.ErrOutOfRange
	ErrInvalidNode = xerrors.ErrInvalidNode
	ErrNotUnitStep = xerrors.ErrNotUnitStep
)
