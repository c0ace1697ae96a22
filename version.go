package depict

// Version is the depict release.
const Version = "0.3.0"
