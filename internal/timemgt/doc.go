// The MAIN and RTC timer roles use different tick-callback shapes (open
// question #1): MAIN's callback is thread-aware (MainTickHandler) because it
// drives scheduler preemption bookkeeping for whichever thread is currently
// running, while RTC's callback (RTCTickHandler) takes nothing, since it only
// advances wall-clock bookkeeping. AUX and LIFETIME are available for
// driver-specific use and carry no kernel-level callback at all; a driver
// that needs one calls Descriptor.SetHandler directly.
package timemgt
