// Package videopipelineservice turns a product title, description and photo
// into a short turntable video.
//
// A run moves through prompt generation, an optional image edit and video
// generation as a chain of queued tasks, then notifies the requester. Each
// link is a separate task so any worker process can pick it up; continuations
// reload the run input from the state store.
package videopipelineservice
