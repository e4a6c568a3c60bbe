package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// bearer credential on pull requests.
const AccessTokenHeaderName = "access_token"

// PrivateChannelPrefix prefixes the per-user delivery channel name.
const PrivateChannelPrefix = "user_"
