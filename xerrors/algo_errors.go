package xerrors

var (
	// ErrEmptyInput 构建索引时输入序列为空。
	ErrEmptyInput = New(ErrInvalidArg, 400101, "empty input", "input sequence must not be empty", nil)
	// ErrOutOfRange 查询区间越界。
	ErrOutOfRange = New(ErrOutOfRangeArg, 400102, "index out of range", "query bounds must satisfy 0 <= i <= j < length", nil)
	// ErrInvalidNode 节点不属于被索引的树。
	ErrInvalidNode = New(ErrInvalidArg, 400103, "invalid node", "node was not produced by the tree that owns this index", nil)
	// ErrNotUnitStep 受限 RMQ 的输入相邻元素差不是 ±1。
	ErrNotUnitStep = New(ErrFailedPrecondition, 400104, "not a unit-step sequence", "adjacent elements must differ by exactly 1", nil)
	// ErrInvalidInput 输入格式错误。
	ErrInvalidInput = New(ErrInvalidArg, 400105, "invalid input", "check your input parameters", nil)
	// ErrIndexNotFound 指定名称的索引不存在。
	ErrIndexNotFound = New(ErrNotFound, 404101, "index not found", "build the index before querying it", nil)
	// ErrIndexExists 同名索引已存在。
	ErrIndexExists = New(ErrAlreadyExists, 409101, "index already exists", "drop the existing index first", nil)
)
