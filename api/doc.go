// Package api exposes the adminauth engine over HTTP with gin, using the
// admin panel's route names: /login, /logout, /register, /getInfo,
// /captchaImage, /GenerateQrcode, /VerifyScan, /ScanLogin, /PhoneLogin,
// /PhoneBind and /checkMobile.
//
// Every response is a JSON envelope {code, msg, data}. Routes that accept a
// bearer token forward a refreshed token in the X-Refresh-Token header,
// except /logout which never refreshes.
package api
