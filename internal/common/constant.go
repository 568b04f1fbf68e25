package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ContentKeySize is the size of the symmetric content key in bytes (AES-256).
const ContentKeySize = 32

// CipherObjectSuffix is appended to an alias to form the ciphertext object key.
const CipherObjectSuffix = ".enc"

// ArchiveSuffix is the extension of packed repository archives.
const ArchiveSuffix = ".tar.gz"
