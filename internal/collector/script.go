// ABOUTME: The fixed PowerShell inventory script dispatched to every agent
// ABOUTME: Emits one JSON object of OS, hardware, Azure IMDS, and registry tag fields

package collector

// CollectScript gathers host inventory and prints it as a single JSON
// object on stdout. Errors are suppressed agent-side; a host that cannot
// answer a section simply omits those fields.
const CollectScript = `
$ErrorActionPreference = 'SilentlyContinue'
$info = @{}
$os  = Get-CimInstance Win32_OperatingSystem
$cs  = Get-CimInstance Win32_ComputerSystem
$cpu = Get-CimInstance Win32_Processor | Select-Object -First 1
$bios = Get-CimInstance Win32_BIOS
$csp = Get-CimInstance Win32_ComputerSystemProduct
$info.hostname       = $env:COMPUTERNAME
$info.domain         = $cs.Domain
$info.os_caption     = $os.Caption
$info.os_version     = $os.Version
$info.memory_gb      = [math]::Round($cs.TotalPhysicalMemory / 1GB, 1)
$info.cpu_cores      = $cpu.NumberOfCores
$info.cpu_speed_ghz  = [math]::Round($cpu.MaxClockSpeed / 1000, 2)
$info.serial_number  = $bios.SerialNumber
$info.uuid           = $csp.UUID
$disk = Get-CimInstance Win32_LogicalDisk -Filter "DeviceID='C:'"
$info.disk_gb = [math]::Round($disk.Size / 1GB, 0)
$ip = (Get-NetIPAddress -AddressFamily IPv4 | Where-Object { $_.InterfaceAlias -notmatch 'Loopback' -and $_.IPAddress -notmatch '^169' } | Select-Object -First 1).IPAddress
$info.ip_address = $ip
try {
    $headers = @{ "Metadata" = "true" }
    $imds = Invoke-RestMethod -Uri "http://169.254.169.254/metadata/instance?api-version=2021-12-13" -Headers $headers -TimeoutSec 3
    $info.is_azure = $true; $info.subscription_id = $imds.compute.subscriptionId; $info.resource_group = $imds.compute.resourceGroupName
    $info.resource_uri = $imds.compute.resourceId; $info.azure_vm_name = $imds.compute.name; $info.vm_size = $imds.compute.vmSize
    $info.location = $imds.compute.location; $info.publisher = $imds.compute.storageProfile.imageReference.publisher
    $info.offer = $imds.compute.storageProfile.imageReference.offer; $info.sku = $imds.compute.storageProfile.imageReference.sku
    $info.os_disk_name = $imds.compute.storageProfile.osDisk.name
} catch { $info.is_azure = $false }
$tagPath = 'HKLM:\SOFTWARE\Tendril\ServerInfo'
if (Test-Path $tagPath) { $tags = Get-ItemProperty $tagPath; $info.tag_application = $tags.Application; $info.tag_department = $tags.Department; $info.tag_lifecycle = $tags.Lifecycle; $info.tag_server_type = $tags.ServerType; $info.tag_vendor = $tags.Vendor }
$info | ConvertTo-Json -Depth 3
`
