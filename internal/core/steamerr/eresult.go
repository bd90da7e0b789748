package steamerr

import "fmt"

// EResult is the platform's numeric result code.
type EResult int

const (
	ResultOK                              EResult = 1
	ResultFail                            EResult = 2
	ResultNoConnection                    EResult = 3
	ResultInvalidPassword                 EResult = 5
	ResultLoggedInElsewhere               EResult = 6
	ResultInvalidProtocolVer              EResult = 7
	ResultInvalidParam                    EResult = 8
	ResultFileNotFound                    EResult = 9
	ResultBusy                            EResult = 10
	ResultInvalidState                    EResult = 11
	ResultInvalidName                     EResult = 12
	ResultInvalidEmail                    EResult = 13
	ResultDuplicateName                   EResult = 14
	ResultAccessDenied                    EResult = 15
	ResultTimeout                         EResult = 16
	ResultBanned                          EResult = 17
	ResultAccountNotFound                 EResult = 18
	ResultInvalidSteamID                  EResult = 19
	ResultServiceUnavailable              EResult = 20
	ResultNotLoggedOn                     EResult = 21
	ResultPending                         EResult = 22
	ResultLimitExceeded                   EResult = 25
	ResultRevoked                         EResult = 26
	ResultExpired                         EResult = 27
	ResultLogonSessionReplaced            EResult = 34
	ResultConnectFailed                   EResult = 35
	ResultHandshakeFailed                 EResult = 36
	ResultIOFailure                       EResult = 37
	ResultRemoteDisconnect                EResult = 38
	ResultBlocked                         EResult = 40
	ResultAccountDisabled                 EResult = 43
	ResultServiceReadOnly                 EResult = 44
	ResultTryAnotherCM                    EResult = 48
	ResultAlreadyLoggedInElsewhere        EResult = 50
	ResultSuspended                       EResult = 51
	ResultCancelled                       EResult = 52
	ResultAccountLogonDenied              EResult = 63
	ResultInvalidLoginAuthCode            EResult = 65
	ResultAccountLogonDeniedNoMail        EResult = 66
	ResultExpiredLoginAuthCode            EResult = 71
	ResultAccountLockedDown               EResult = 73
	ResultRateLimitExceeded               EResult = 84
	ResultAccountLoginDeniedNeedTwoFactor EResult = 85
	ResultItemDeleted                     EResult = 86
	ResultAccountLoginDeniedThrottle      EResult = 87
	ResultTwoFactorCodeMismatch           EResult = 88
)

var resultNames = map[EResult]string{
	ResultOK:                              "OK",
	ResultFail:                            "Fail",
	ResultNoConnection:                    "NoConnection",
	ResultInvalidPassword:                 "InvalidPassword",
	ResultLoggedInElsewhere:               "LoggedInElsewhere",
	ResultInvalidProtocolVer:              "InvalidProtocolVer",
	ResultInvalidParam:                    "InvalidParam",
	ResultFileNotFound:                    "FileNotFound",
	ResultBusy:                            "Busy",
	ResultInvalidState:                    "InvalidState",
	ResultInvalidName:                     "InvalidName",
	ResultInvalidEmail:                    "InvalidEmail",
	ResultDuplicateName:                   "DuplicateName",
	ResultAccessDenied:                    "AccessDenied",
	ResultTimeout:                         "Timeout",
	ResultBanned:                          "Banned",
	ResultAccountNotFound:                 "AccountNotFound",
	ResultInvalidSteamID:                  "InvalidSteamID",
	ResultServiceUnavailable:              "ServiceUnavailable",
	ResultNotLoggedOn:                     "NotLoggedOn",
	ResultPending:                         "Pending",
	ResultLimitExceeded:                   "LimitExceeded",
	ResultRevoked:                         "Revoked",
	ResultExpired:                         "Expired",
	ResultLogonSessionReplaced:            "LogonSessionReplaced",
	ResultConnectFailed:                   "ConnectFailed",
	ResultHandshakeFailed:                 "HandshakeFailed",
	ResultIOFailure:                       "IOFailure",
	ResultRemoteDisconnect:                "RemoteDisconnect",
	ResultBlocked:                         "Blocked",
	ResultAccountDisabled:                 "AccountDisabled",
	ResultServiceReadOnly:                 "ServiceReadOnly",
	ResultTryAnotherCM:                    "TryAnotherCM",
	ResultAlreadyLoggedInElsewhere:        "AlreadyLoggedInElsewhere",
	ResultSuspended:                       "Suspended",
	ResultCancelled:                       "Cancelled",
	ResultAccountLogonDenied:              "AccountLogonDenied",
	ResultInvalidLoginAuthCode:            "InvalidLoginAuthCode",
	ResultAccountLogonDeniedNoMail:        "AccountLogonDeniedNoMail",
	ResultExpiredLoginAuthCode:            "ExpiredLoginAuthCode",
	ResultAccountLockedDown:               "AccountLockedDown",
	ResultRateLimitExceeded:               "RateLimitExceeded",
	ResultAccountLoginDeniedNeedTwoFactor: "AccountLoginDeniedNeedTwoFactor",
	ResultItemDeleted:                     "ItemDeleted",
	ResultAccountLoginDeniedThrottle:      "AccountLoginDeniedThrottle",
	ResultTwoFactorCodeMismatch:           "TwoFactorCodeMismatch",
}

// criticalResults are codes where another login attempt makes the account's standing worse.
var criticalResults = map[EResult]struct{}{
	ResultInvalidPassword:                 {},
	ResultBanned:                          {},
	ResultAccountDisabled:                 {},
	ResultAccountLogonDenied:              {},
	ResultAccountLockedDown:               {},
	ResultRateLimitExceeded:               {},
	ResultAccountLoginDeniedNeedTwoFactor: {},
	ResultAccountLoginDeniedThrottle:      {},
}

// String returns the human-readable name, or Unknown(n) for codes outside the table.
func (r EResult) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(r))
}

// Critical reports whether the code belongs to the shutdown set.
func (r EResult) Critical() bool {
	_, ok := criticalResults[r]
	return ok
}
