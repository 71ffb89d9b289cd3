package api

// Judge verdict status codes shared with the server
const (
	StatusWaiting             int32 = 0
	StatusAccepted            int32 = 1
	StatusWrongAnswer         int32 = 2
	StatusTimeLimitExceeded   int32 = 3
	StatusMemoryLimitExceeded int32 = 4
	StatusOutputLimitExceeded int32 = 5
	StatusRuntimeError        int32 = 6
	StatusCompileError        int32 = 7
	StatusSystemError         int32 = 8
	StatusCanceled            int32 = 9
	StatusJudging             int32 = 20
	StatusCompiling           int32 = 21
	StatusFetched             int32 = 22
	StatusIgnored             int32 = 30
)
