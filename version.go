package pulse

// Version is the agent version reported to backends and logs
const Version = "0.3.0"
