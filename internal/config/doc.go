// Package config はGatewayの設定を読み込む。
//
// 設定はYAMLファイル（任意）と環境変数から起動時に一度だけ構築され、
// 以後は不変の値としてToken ValidatorとRoute Dispatcherに渡される。
// 必須項目が欠けている場合、プロセスは起動しない。
package config
