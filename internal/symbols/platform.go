package symbols

import "runtime"

var (
	isARMHost   = runtime.GOARCH == "arm64" || runtime.GOARCH == "arm"
	is64BitHost = runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
)
